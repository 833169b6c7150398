package chat

import (
	"testing"
	"time"
)

func TestMessageRateLimiter(t *testing.T) {
	t.Run("blocks past the limit", func(t *testing.T) {
		rl := NewMessageRateLimiter(3, time.Minute)
		for i := 0; i < 3; i++ {
			if !rl.Allow("alice") {
				t.Fatalf("attempt %d blocked below the limit", i)
			}
		}
		if rl.Allow("alice") {
			t.Fatal("attempt above the limit allowed")
		}
	})

	t.Run("users are limited independently", func(t *testing.T) {
		rl := NewMessageRateLimiter(1, time.Minute)
		if !rl.Allow("alice") {
			t.Fatal("alice blocked")
		}
		if !rl.Allow("bob") {
			t.Fatal("bob blocked by alice's history")
		}
	})

	t.Run("window expiry frees the budget", func(t *testing.T) {
		rl := NewMessageRateLimiter(1, 10*time.Millisecond)
		if !rl.Allow("alice") {
			t.Fatal("first attempt blocked")
		}
		if rl.Allow("alice") {
			t.Fatal("second immediate attempt allowed")
		}
		time.Sleep(20 * time.Millisecond)
		if !rl.Allow("alice") {
			t.Fatal("attempt after window expiry blocked")
		}
	})

	t.Run("forget clears history", func(t *testing.T) {
		rl := NewMessageRateLimiter(1, time.Minute)
		rl.Allow("alice")
		rl.Forget("alice")
		if !rl.Allow("alice") {
			t.Fatal("history survived Forget")
		}
	})
}
