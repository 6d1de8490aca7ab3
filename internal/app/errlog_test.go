package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func TestErrorLog_RecentNewestFirst(t *testing.T) {
	kv, ctx := newTestKV(t)
	l := NewErrorLog(zerolog.Nop(), kv)

	for i := 0; i < 5; i++ {
		l.Record(ctx, fmt.Sprintf("source-%d", i), errors.New("boom"))
	}

	recent := l.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if recent[0].Source != "source-4" || recent[2].Source != "source-2" {
		t.Fatalf("unexpected order: %+v", recent)
	}
}

func TestErrorLog_SurvivesRestart(t *testing.T) {
	kv, ctx := newTestKV(t)

	l := NewErrorLog(zerolog.Nop(), kv)
	l.Record(ctx, "sync.feeds", errors.New("network down"))

	// Nouveau process, même store.
	l2 := NewErrorLog(zerolog.Nop(), kv)
	l2.Hydrate(ctx)
	recent := l2.Recent(10)
	if len(recent) != 1 || recent[0].Source != "sync.feeds" {
		t.Fatalf("hydrated log: %+v", recent)
	}
}

func TestErrorLog_RingIsBounded(t *testing.T) {
	kv, ctx := newTestKV(t)
	l := NewErrorLog(zerolog.Nop(), kv)

	for i := 0; i < 250; i++ {
		l.Record(ctx, fmt.Sprintf("s-%d", i), errors.New("x"))
	}
	if got := len(l.Recent(1000)); got != 200 {
		t.Fatalf("ring size = %d, want 200", got)
	}
}
