package app

import (
	"context"
	"errors"

	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/google/uuid"
)

const deviceIDKey = "device_id"

// LoadOrCreateDeviceID renvoie l'identifiant d'appareil persisté, généré à
// la première exécution. Il tient lieu d'identité (pas de login).
func LoadOrCreateDeviceID(ctx context.Context, kv ports.KVRepository) (string, error) {
	b, err := kv.Get(ctx, deviceIDKey)
	if err == nil && len(b) > 0 {
		return string(b), nil
	}
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return "", err
	}

	id := uuid.NewString()
	if err := kv.Put(ctx, deviceIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
