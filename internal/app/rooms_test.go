package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app/sfu"
	"github.com/dkeye/Huddle/internal/core/coretest"
	"github.com/dkeye/Huddle/internal/domain"
)

func newTestRegistry(t *testing.T) (*RoomRegistry, *coretest.StubEngine) {
	t.Helper()
	eng := coretest.NewStubEngine()
	pool := sfu.NewWorkerPool(eng, time.Second, func() {})
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	return NewRoomRegistry(pool, DefaultMediaCodecs), eng
}

func TestRoomRegistryJoin(t *testing.T) {
	t.Run("first join creates the routing context", func(t *testing.T) {
		reg, eng := newTestRegistry(t)
		router, err := reg.Join(context.Background(), "lobby", "conn-1", &coretest.StubConn{})
		if err != nil {
			t.Fatal(err)
		}
		if router == nil {
			t.Fatal("nil router")
		}
		if got := len(eng.Workers[0].Routers); got != 1 {
			t.Fatalf("routers created = %d, want 1", got)
		}
		if reg.MemberCount("lobby") != 1 {
			t.Fatalf("member count = %d, want 1", reg.MemberCount("lobby"))
		}
	})

	t.Run("second join reuses the routing context", func(t *testing.T) {
		reg, eng := newTestRegistry(t)
		r1, err := reg.Join(context.Background(), "lobby", "conn-1", &coretest.StubConn{})
		if err != nil {
			t.Fatal(err)
		}
		r2, err := reg.Join(context.Background(), "lobby", "conn-2", &coretest.StubConn{})
		if err != nil {
			t.Fatal(err)
		}
		if r1.ID() != r2.ID() {
			t.Fatalf("router ids differ: %q vs %q", r1.ID(), r2.ID())
		}
		if got := len(eng.Workers[0].Routers); got != 1 {
			t.Fatalf("routers created = %d, want 1", got)
		}
	})

	t.Run("rejoin does not duplicate membership", func(t *testing.T) {
		reg, _ := newTestRegistry(t)
		for i := 0; i < 3; i++ {
			if _, err := reg.Join(context.Background(), "lobby", "conn-1", &coretest.StubConn{}); err != nil {
				t.Fatal(err)
			}
		}
		if got := reg.MemberCount("lobby"); got != 1 {
			t.Fatalf("member count = %d, want 1", got)
		}
	})

	t.Run("concurrent joins create exactly one router", func(t *testing.T) {
		reg, eng := newTestRegistry(t)
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cid := domain.ConnID(fmt.Sprintf("conn-%d", i))
				if _, err := reg.Join(context.Background(), "lobby", cid, &coretest.StubConn{}); err != nil {
					t.Error(err)
				}
			}(i)
		}
		wg.Wait()
		if got := len(eng.Workers[0].Routers); got != 1 {
			t.Fatalf("routers created = %d, want 1", got)
		}
		if got := reg.MemberCount("lobby"); got != 16 {
			t.Fatalf("member count = %d, want 16", got)
		}
	})
}

func TestRoomRegistryLeave(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.Join(context.Background(), "lobby", "conn-1", &coretest.StubConn{}); err != nil {
		t.Fatal(err)
	}
	reg.Leave("lobby", "conn-1")

	if got := reg.MemberCount("lobby"); got != 0 {
		t.Fatalf("member count = %d, want 0", got)
	}
	// The routing context survives an empty room.
	if _, ok := reg.Router("lobby"); !ok {
		t.Fatal("router gone after last member left")
	}
	// Leaving an unknown room is a no-op.
	reg.Leave("nowhere", "conn-1")
}

func TestRoomRegistryCapabilities(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.Capabilities("lobby"); err == nil {
		t.Fatal("expected error for unknown room")
	}
	if _, err := reg.Join(context.Background(), "lobby", "conn-1", &coretest.StubConn{}); err != nil {
		t.Fatal(err)
	}
	caps, err := reg.Capabilities("lobby")
	if err != nil {
		t.Fatal(err)
	}
	if len(caps.Codecs) != len(DefaultMediaCodecs) {
		t.Fatalf("codec count = %d, want %d", len(caps.Codecs), len(DefaultMediaCodecs))
	}
}

func TestRoomRegistryList(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Join(ctx, "alpha", "conn-1", &coretest.StubConn{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Join(ctx, "alpha", "conn-2", &coretest.StubConn{}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Join(ctx, "beta", "conn-3", &coretest.StubConn{}); err != nil {
		t.Fatal(err)
	}

	counts := map[domain.RoomName]int{}
	for _, info := range reg.List() {
		counts[info.Name] = info.MemberCount
	}
	if counts["alpha"] != 2 || counts["beta"] != 1 {
		t.Fatalf("unexpected listing: %v", counts)
	}
}
