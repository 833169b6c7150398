package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/adapters/store"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/core/coretest"
	"github.com/dkeye/Huddle/internal/domain"
)

func newTestService(t *testing.T) (*Service, *app.ConnectionRegistry) {
	t.Helper()
	reg := app.NewConnectionRegistry()
	return NewService(reg, store.NewMemoryStore()), reg
}

func bind(reg *app.ConnectionRegistry, uid domain.UserID, cid domain.ConnID) *coretest.StubConn {
	conn := &coretest.StubConn{}
	reg.Bind(uid, cid, conn)
	return conn
}

func lastMessage(t *testing.T, conn *coretest.StubConn) *domain.Message {
	t.Helper()
	frames := conn.Sent()
	if len(frames) == 0 {
		t.Fatal("no frames delivered")
	}
	var p struct {
		Type    string          `json:"type"`
		Message *domain.Message `json:"message"`
	}
	if err := json.Unmarshal(frames[len(frames)-1], &p); err != nil {
		t.Fatal(err)
	}
	if p.Type != "newMessage" {
		t.Fatalf("push type = %q, want newMessage", p.Type)
	}
	return p.Message
}

func TestSendMessage(t *testing.T) {
	t.Run("first contact creates the conversation", func(t *testing.T) {
		svc, reg := newTestService(t)
		aliceConn := bind(reg, "alice", "conn-a")
		bobConn := bind(reg, "bob", "conn-b")

		msg, err := svc.SendMessage(context.Background(), "conn-a", SendMessageInput{
			Receiver: "bob", Body: "hi",
		})
		if err != nil {
			t.Fatal(err)
		}
		if msg.ConversationID == "" {
			t.Fatal("message without conversation id")
		}

		// Receiver gets the message, sender gets the echo.
		if got := lastMessage(t, bobConn); got.Body != "hi" || got.Sender != "alice" {
			t.Fatalf("delivered %+v", got)
		}
		if got := lastMessage(t, aliceConn); got.ID != msg.ID {
			t.Fatalf("echo id = %q, want %q", got.ID, msg.ID)
		}
	})

	t.Run("second message reuses the pair conversation", func(t *testing.T) {
		svc, reg := newTestService(t)
		bind(reg, "alice", "conn-a")
		bind(reg, "bob", "conn-b")

		first, err := svc.SendMessage(context.Background(), "conn-a", SendMessageInput{Receiver: "bob", Body: "one"})
		if err != nil {
			t.Fatal(err)
		}
		// Reply direction resolves the same unordered pair.
		second, err := svc.SendMessage(context.Background(), "conn-b", SendMessageInput{Receiver: "alice", Body: "two"})
		if err != nil {
			t.Fatal(err)
		}
		if first.ConversationID != second.ConversationID {
			t.Fatalf("conversations differ: %q vs %q", first.ConversationID, second.ConversationID)
		}
	})

	t.Run("explicit chat id must exist", func(t *testing.T) {
		svc, reg := newTestService(t)
		bind(reg, "alice", "conn-a")

		_, err := svc.SendMessage(context.Background(), "conn-a", SendMessageInput{
			ChatID: "no-such-chat", Receiver: "bob", Body: "hi",
		})
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("unbound connection is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.SendMessage(context.Background(), "conn-x", SendMessageInput{Receiver: "bob", Body: "hi"})
		if !errors.Is(err, core.ErrAuthFailed) {
			t.Fatalf("err = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("offline receiver still persists and echoes", func(t *testing.T) {
		svc, reg := newTestService(t)
		aliceConn := bind(reg, "alice", "conn-a")

		msg, err := svc.SendMessage(context.Background(), "conn-a", SendMessageInput{Receiver: "bob", Body: "hi"})
		if err != nil {
			t.Fatal(err)
		}
		if got := lastMessage(t, aliceConn); got.ID != msg.ID {
			t.Fatal("sender echo missing for offline receiver")
		}
	})
}

func TestSendMessageConcurrentFirstContact(t *testing.T) {
	svc, reg := newTestService(t)
	bind(reg, "alice", "conn-a")
	bind(reg, "bob", "conn-b")

	const n = 8
	var wg sync.WaitGroup
	convs := make(chan domain.ConversationID, 2*n)
	rejected := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			msg, err := svc.SendMessage(context.Background(), "conn-a", SendMessageInput{Receiver: "bob", Body: "a"})
			if err != nil {
				rejected <- err
				return
			}
			convs <- msg.ConversationID
		}()
		go func() {
			defer wg.Done()
			msg, err := svc.SendMessage(context.Background(), "conn-b", SendMessageInput{Receiver: "alice", Body: "b"})
			if err != nil {
				rejected <- err
				return
			}
			convs <- msg.ConversationID
		}()
	}
	wg.Wait()
	close(convs)
	close(rejected)

	// Exactly one conversation id among all successes; losers of the create
	// race saw ErrAlreadyExists, nothing else.
	ids := map[domain.ConversationID]bool{}
	for id := range convs {
		ids[id] = true
	}
	if len(ids) != 1 {
		t.Fatalf("conversation ids created = %d, want 1", len(ids))
	}
	for err := range rejected {
		if !errors.Is(err, core.ErrAlreadyExists) {
			t.Fatalf("unexpected rejection: %v", err)
		}
	}
}

func TestMarkRead(t *testing.T) {
	svc, reg := newTestService(t)
	bind(reg, "alice", "conn-a")
	bind(reg, "bob", "conn-b")

	msg, err := svc.SendMessage(context.Background(), "conn-a", SendMessageInput{Receiver: "bob", Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkRead(context.Background(), "conn-b", msg.ConversationID); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkRead(context.Background(), "conn-x", msg.ConversationID); !errors.Is(err, core.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}
