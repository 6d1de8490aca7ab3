package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/drosenbaum/shiurcast/internal/ports"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

const (
	errorLogKey          = "error_log"
	errorLogMemoryLimit  = 200
	errorLogPersistLimit = 50
)

type ErrorEntry struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ErrorLog est l'anneau borné des erreurs remontées par les sous-systèmes:
// 200 entrées en mémoire, les 50 plus récentes persistées (best-effort).
type ErrorLog struct {
	logger zerolog.Logger
	kv     ports.KVRepository

	mu      sync.Mutex
	entries []ErrorEntry
}

func NewErrorLog(logger zerolog.Logger, kv ports.KVRepository) *ErrorLog {
	return &ErrorLog{logger: logger, kv: kv}
}

// Hydrate recharge les entrées persistées au démarrage.
func (l *ErrorLog) Hydrate(ctx context.Context) {
	b, err := l.kv.Get(ctx, errorLogKey)
	if err != nil {
		return
	}
	var entries []ErrorEntry
	if json.Unmarshal(b, &entries) != nil {
		return
	}
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
}

func (l *ErrorLog) Record(ctx context.Context, source string, err error) {
	if err == nil {
		return
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindIO
	}
	entry := ErrorEntry{
		ID:      xid.New().String(),
		Kind:    kind,
		Source:  source,
		Message: err.Error(),
		At:      time.Now().UTC(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > errorLogMemoryLimit {
		l.entries = l.entries[len(l.entries)-errorLogMemoryLimit:]
	}
	tail := l.entries
	if len(tail) > errorLogPersistLimit {
		tail = tail[len(tail)-errorLogPersistLimit:]
	}
	persisted := make([]ErrorEntry, len(tail))
	copy(persisted, tail)
	l.mu.Unlock()

	if b, merr := json.Marshal(persisted); merr == nil {
		if perr := l.kv.Put(ctx, errorLogKey, b); perr != nil {
			l.logger.Warn().Err(perr).Msg("persist error log failed")
		}
	}
}

// Recent renvoie les n entrées les plus récentes, la dernière en premier.
func (l *ErrorLog) Recent(n int) []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]ErrorEntry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}
