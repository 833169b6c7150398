// Package chat routes 1:1 messages between authenticated connections.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type Service struct {
	Registry *app.ConnectionRegistry
	Store    core.ConversationStore
}

func NewService(registry *app.ConnectionRegistry, store core.ConversationStore) *Service {
	return &Service{Registry: registry, Store: store}
}

type SendMessageInput struct {
	ChatID   domain.ConversationID `json:"chatId,omitempty"`
	Receiver domain.UserID         `json:"receiverId"`
	Body     string                `json:"message"`
}

type pushNewMessage struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// SendMessage appends a message to the conversation named by ChatID, or to
// the conversation for the (sender, receiver) pair when ChatID is empty,
// creating it on first contact. Two concurrent first-contact sends for the
// same pair create exactly one conversation; the loser gets ErrAlreadyExists,
// matching the persistence layer's uniqueness guarantee. On success the
// message is delivered to the receiver's live connection, if any, and always
// echoed back to the sender's own connection as the acknowledgement.
func (s *Service) SendMessage(ctx context.Context, cid domain.ConnID, in SendMessageInput) (*domain.Message, error) {
	sender, ok := s.Registry.UserOf(cid)
	if !ok {
		return nil, core.ErrAuthFailed
	}

	conv, err := s.resolveConversation(ctx, sender, in)
	if err != nil {
		return nil, err
	}

	msg := domain.NewMessage(conv.ID, sender, in.Receiver, in.Body)
	if err := s.Store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if conn, ok := s.Registry.Lookup(in.Receiver); ok {
		s.deliver(conn, msg)
	}
	if conn, ok := s.Registry.Lookup(sender); ok {
		s.deliver(conn, msg)
	}
	log.Debug().Str("module", "chat").Str("conversation", string(conv.ID)).
		Str("sender", string(sender)).Str("receiver", string(in.Receiver)).Msg("message routed")
	return msg, nil
}

func (s *Service) resolveConversation(ctx context.Context, sender domain.UserID, in SendMessageInput) (*domain.Conversation, error) {
	if in.ChatID != "" {
		return s.Store.FindConversation(ctx, in.ChatID)
	}
	conv, err := s.Store.FindByParticipants(ctx, sender, in.Receiver)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	// First contact. Creation is atomic in the store; a concurrent creator
	// surfaces here as ErrAlreadyExists and the client retries with lookup.
	return s.Store.CreateConversation(ctx, sender, in.Receiver)
}

// MarkRead flags the conversation read for the calling user.
func (s *Service) MarkRead(ctx context.Context, cid domain.ConnID, conv domain.ConversationID) error {
	user, ok := s.Registry.UserOf(cid)
	if !ok {
		return core.ErrAuthFailed
	}
	return s.Store.MarkRead(ctx, conv, user)
}

func (s *Service) deliver(conn core.SignalConnection, msg *domain.Message) {
	b, err := json.Marshal(pushNewMessage{Type: "newMessage", Message: msg})
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("marshal newMessage")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "chat").Msg("delivery dropped")
	}
}
