package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	token, err := j.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	uid, err := j.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "alice" {
		t.Fatalf("uid = %q, want alice", uid)
	}
}

func TestJWTVerifyFailures(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)

	t.Run("empty token", func(t *testing.T) {
		if _, err := j.Verify(""); !errors.Is(err, core.ErrAuthFailed) {
			t.Fatalf("err = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := j.Verify("not.a.token"); !errors.Is(err, core.ErrAuthFailed) {
			t.Fatalf("err = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWT("other-secret", time.Hour)
		token, err := other.Issue("alice")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := j.Verify(token); !errors.Is(err, core.ErrAuthFailed) {
			t.Fatalf("err = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		short := NewJWT("test-secret", -time.Minute)
		token, err := short.Issue("alice")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := j.Verify(token); !errors.Is(err, core.ErrAuthFailed) {
			t.Fatalf("err = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("empty user id", func(t *testing.T) {
		token, err := j.Issue("")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := j.Verify(token); !errors.Is(err, core.ErrAuthFailed) {
			t.Fatalf("err = %v, want ErrAuthFailed", err)
		}
	})
}
