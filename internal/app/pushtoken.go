package app

import (
	"context"

	"github.com/drosenbaum/shiurcast/internal/ports"
)

const pushTokenKey = "push_token"

// RegisterPushToken enregistre le token auprès du backend, en sautant
// l'appel si le token n'a pas changé depuis le dernier envoi réussi.
func RegisterPushToken(ctx context.Context, kv ports.KVRepository, catalog ports.CatalogAPI, deviceID, token, platform string) error {
	if token == "" {
		return Coded(KindInvalid, "empty push token", nil)
	}
	if prev, err := kv.Get(ctx, pushTokenKey); err == nil && string(prev) == token {
		return nil
	}
	if err := catalog.RegisterPushToken(ctx, deviceID, token, platform); err != nil {
		return err
	}
	if err := kv.Put(ctx, pushTokenKey, []byte(token)); err != nil {
		// L'enregistrement distant a réussi; le prochain appel renverra le
		// même token, ce que le backend tolère.
		return nil
	}
	return nil
}
