// Package store provides ConversationStore backends. The memory store is the
// default and doubles as the test fixture; the redis store is selected by
// config for deployments that need messages to outlive the process.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type MemoryStore struct {
	mu       sync.Mutex
	byID     map[domain.ConversationID]*domain.Conversation
	byPair   map[string]domain.ConversationID
	messages map[domain.ConversationID][]*domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[domain.ConversationID]*domain.Conversation),
		byPair:   make(map[string]domain.ConversationID),
		messages: make(map[domain.ConversationID][]*domain.Message),
	}
}

func (s *MemoryStore) FindConversation(_ context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) FindByParticipants(_ context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[domain.PairKey(a, b)]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// CreateConversation checks the pair index and inserts under one lock, so of
// two racing first-contact creators exactly one wins.
func (s *MemoryStore) CreateConversation(_ context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	key := domain.PairKey(a, b)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPair[key]; ok {
		return nil, core.ErrAlreadyExists
	}
	conv := domain.NewConversation(a, b)
	s.byID[conv.ID] = conv
	s.byPair[key] = conv.ID
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[msg.ConversationID]
	if !ok {
		return core.ErrNotFound
	}
	s.messages[conv.ID] = append(s.messages[conv.ID], msg)
	conv.LastMessageID = msg.ID
	conv.Unread = true
	conv.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id domain.ConversationID, _ domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	conv.Unread = false
	return nil
}

// Messages returns the conversation's messages in append order.
func (s *MemoryStore) Messages(id domain.ConversationID) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Message, len(s.messages[id]))
	copy(out, s.messages[id])
	return out
}
