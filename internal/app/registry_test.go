package app

import (
	"testing"

	"github.com/dkeye/Huddle/internal/core/coretest"
)

func TestConnectionRegistry(t *testing.T) {
	t.Run("bind and lookup", func(t *testing.T) {
		r := NewConnectionRegistry()
		conn := &coretest.StubConn{}
		r.Bind("alice", "conn-1", conn)

		got, ok := r.Lookup("alice")
		if !ok {
			t.Fatal("expected alice to be bound")
		}
		if got != conn {
			t.Fatal("lookup returned a different connection")
		}
		uid, ok := r.UserOf("conn-1")
		if !ok || uid != "alice" {
			t.Fatalf("UserOf = %q, %v; want alice, true", uid, ok)
		}
	})

	t.Run("reconnect displaces prior binding", func(t *testing.T) {
		r := NewConnectionRegistry()
		first := &coretest.StubConn{}
		second := &coretest.StubConn{}
		r.Bind("alice", "conn-1", first)
		r.Bind("alice", "conn-2", second)

		got, ok := r.Lookup("alice")
		if !ok || got != second {
			t.Fatal("expected lookup to resolve the newest connection")
		}
		if _, ok := r.UserOf("conn-1"); ok {
			t.Fatal("stale connection id still resolves a user")
		}
		if r.Len() != 1 {
			t.Fatalf("Len = %d, want 1", r.Len())
		}
	})

	t.Run("unbind removes binding", func(t *testing.T) {
		r := NewConnectionRegistry()
		r.Bind("alice", "conn-1", &coretest.StubConn{})
		r.Unbind("conn-1")

		if _, ok := r.Lookup("alice"); ok {
			t.Fatal("alice still bound after unbind")
		}
		if r.Len() != 0 {
			t.Fatalf("Len = %d, want 0", r.Len())
		}
	})

	t.Run("unbind of stale connection keeps newer binding", func(t *testing.T) {
		r := NewConnectionRegistry()
		newer := &coretest.StubConn{}
		r.Bind("alice", "conn-1", &coretest.StubConn{})
		r.Bind("alice", "conn-2", newer)

		// Late teardown of the displaced connection must not evict alice.
		r.Unbind("conn-1")

		got, ok := r.Lookup("alice")
		if !ok || got != newer {
			t.Fatal("newer binding lost after stale unbind")
		}
	})

	t.Run("unknown lookups", func(t *testing.T) {
		r := NewConnectionRegistry()
		if _, ok := r.Lookup("nobody"); ok {
			t.Fatal("unexpected hit for unknown user")
		}
		if _, ok := r.UserOf("conn-x"); ok {
			t.Fatal("unexpected hit for unknown connection")
		}
		r.Unbind("conn-x")
	})
}
