package common

import (
	"sync"
	"time"
)

// RateLimiter реализует sliding-window limit на key (source:subject).
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

// NewRateLimiter создает limiter с лимитом событий в окне.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow возвращает true, если запрос укладывается в лимит.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	ok, _ := l.Reserve(key, now)
	return ok
}

// Reserve учитывает запрос и при отказе сообщает, через сколько окно освободится.
func (l *RateLimiter) Reserve(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.live(key, now)
	if len(kept) >= l.limit {
		l.events[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}
	l.events[key] = append(kept, now)
	return true, 0
}

// Prune удаляет ключи без событий в текущем окне; возвращает число удаленных.
func (l *RateLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key := range l.events {
		if kept := l.live(key, now); len(kept) == 0 {
			delete(l.events, key)
			removed++
		} else {
			l.events[key] = kept
		}
	}
	return removed
}

// live возвращает события key внутри окна; вызывается под mu.
func (l *RateLimiter) live(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	items := l.events[key]
	kept := items[:0]
	for _, ts := range items {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
