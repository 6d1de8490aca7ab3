package app

import (
	"context"
	"testing"

	"github.com/drosenbaum/shiurcast/internal/adapters/sqlite"
)

func newTestKV(t *testing.T) (*sqlite.KVRepository, context.Context) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewKVRepository(db.SQL), ctx
}

func TestLoadOrCreateDeviceID_StableAcrossCalls(t *testing.T) {
	kv, ctx := newTestKV(t)

	first, err := LoadOrCreateDeviceID(ctx, kv)
	if err != nil {
		t.Fatalf("LoadOrCreateDeviceID: %v", err)
	}
	if first == "" {
		t.Fatal("empty device id")
	}

	second, err := LoadOrCreateDeviceID(ctx, kv)
	if err != nil {
		t.Fatalf("LoadOrCreateDeviceID: %v", err)
	}
	if second != first {
		t.Fatalf("device id changed: %s != %s", second, first)
	}
}

func TestRegisterPushToken_SkipsUnchangedToken(t *testing.T) {
	kv, ctx := newTestKV(t)
	catalog := &fakeCatalog{}

	if err := RegisterPushToken(ctx, kv, catalog, "dev-1", "tok-1", "android"); err != nil {
		t.Fatalf("RegisterPushToken: %v", err)
	}
	// Même token: pas d'appel réseau.
	if err := RegisterPushToken(ctx, kv, catalog, "dev-1", "tok-1", "android"); err != nil {
		t.Fatalf("RegisterPushToken (same): %v", err)
	}
	if len(catalog.pushTokens) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(catalog.pushTokens))
	}

	// Token tourné: ré-enregistrement.
	if err := RegisterPushToken(ctx, kv, catalog, "dev-1", "tok-2", "android"); err != nil {
		t.Fatalf("RegisterPushToken (rotated): %v", err)
	}
	if len(catalog.pushTokens) != 2 {
		t.Fatalf("backend calls = %d, want 2", len(catalog.pushTokens))
	}

	if err := RegisterPushToken(ctx, kv, catalog, "dev-1", "", "android"); err == nil {
		t.Fatal("empty token accepted")
	}
}
