package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

func TestMemoryStoreConversations(t *testing.T) {
	ctx := context.Background()

	t.Run("create then find by id and by pair", func(t *testing.T) {
		s := NewMemoryStore()
		conv, err := s.CreateConversation(ctx, "alice", "bob")
		if err != nil {
			t.Fatal(err)
		}

		byID, err := s.FindConversation(ctx, conv.ID)
		if err != nil {
			t.Fatal(err)
		}
		if byID.ID != conv.ID {
			t.Fatalf("FindConversation id = %q, want %q", byID.ID, conv.ID)
		}

		// The pair is unordered.
		byPair, err := s.FindByParticipants(ctx, "bob", "alice")
		if err != nil {
			t.Fatal(err)
		}
		if byPair.ID != conv.ID {
			t.Fatalf("FindByParticipants id = %q, want %q", byPair.ID, conv.ID)
		}
	})

	t.Run("duplicate pair rejected", func(t *testing.T) {
		s := NewMemoryStore()
		if _, err := s.CreateConversation(ctx, "alice", "bob"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.CreateConversation(ctx, "bob", "alice"); !errors.Is(err, core.ErrAlreadyExists) {
			t.Fatalf("err = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("unknown lookups return NotFound", func(t *testing.T) {
		s := NewMemoryStore()
		if _, err := s.FindConversation(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if _, err := s.FindByParticipants(ctx, "a", "b"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent creates produce one conversation", func(t *testing.T) {
		s := NewMemoryStore()
		var wg sync.WaitGroup
		created := make(chan domain.ConversationID, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conv, err := s.CreateConversation(ctx, "alice", "bob")
				if err != nil {
					if !errors.Is(err, core.ErrAlreadyExists) {
						t.Error(err)
					}
					return
				}
				created <- conv.ID
			}()
		}
		wg.Wait()
		close(created)
		n := 0
		for range created {
			n++
		}
		if n != 1 {
			t.Fatalf("conversations created = %d, want 1", n)
		}
	})
}

func TestMemoryStoreMessages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	conv, err := s.CreateConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("append updates conversation", func(t *testing.T) {
		msg := domain.NewMessage(conv.ID, "alice", "bob", "hi")
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
		got, err := s.FindConversation(ctx, conv.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.LastMessageID != msg.ID || !got.Unread {
			t.Fatalf("conversation not updated: %+v", got)
		}
		if msgs := s.Messages(conv.ID); len(msgs) != 1 || msgs[0].Body != "hi" {
			t.Fatalf("messages = %+v", msgs)
		}
	})

	t.Run("append to unknown conversation", func(t *testing.T) {
		msg := domain.NewMessage("nope", "alice", "bob", "hi")
		if err := s.AppendMessage(ctx, msg); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("mark read clears the flag", func(t *testing.T) {
		if err := s.MarkRead(ctx, conv.ID, "bob"); err != nil {
			t.Fatal(err)
		}
		got, err := s.FindConversation(ctx, conv.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Unread {
			t.Fatal("unread flag survived mark read")
		}
		if err := s.MarkRead(ctx, "nope", "bob"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}
