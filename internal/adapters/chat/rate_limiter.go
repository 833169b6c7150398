package chat

import (
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

// MessageRateLimiter caps how many messages a user may send inside a
// sliding window. Old attempts fall out of the window lazily on the next
// Allow call for that user.
type MessageRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
}

func NewMessageRateLimiter(limit int, interval time.Duration) *MessageRateLimiter {
	return &MessageRateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *MessageRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[uid]

	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[uid] = fresh

	return true
}

func (rl *MessageRateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	delete(rl.history, uid)
	rl.mu.Unlock()
}
