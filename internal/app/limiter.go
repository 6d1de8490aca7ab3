package app

import (
	"context"
	"sync"
)

// DynamicLimiter borne le nombre de transferts audio simultanés.
// Le plafond suit le réglage maxConcurrentDownloads et peut changer à chaud
// via SetLimit. Acquire respecte le contexte.
type DynamicLimiter struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	notify   chan struct{}
}

func NewDynamicLimiter(limit int) *DynamicLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &DynamicLimiter{limit: limit, notify: make(chan struct{})}
}

func (l *DynamicLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func (l *DynamicLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

func (l *DynamicLimiter) SetLimit(limit int) {
	if limit <= 0 {
		limit = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit == limit {
		return
	}
	l.limit = limit
	l.signalLocked()
}

func (l *DynamicLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		limit := l.limit
		if limit <= 0 {
			limit = 1
		}
		if l.inFlight < limit {
			l.inFlight++
			l.mu.Unlock()
			return nil
		}
		ch := l.notify
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (l *DynamicLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	l.signalLocked()
}

func (l *DynamicLimiter) signalLocked() {
	// Fermer puis recréer le channel réveille tous les transferts en
	// attente d'un coup; sans waiter c'est un no-op.
	close(l.notify)
	l.notify = make(chan struct{})
}
