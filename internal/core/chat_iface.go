package core

import (
	"context"

	"github.com/dkeye/Huddle/internal/domain"
)

// TokenVerifier checks a signed session token presented in a connection
// handshake. Implementations return ErrAuthFailed for missing, malformed,
// badly signed or expired tokens.
type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// ConversationStore persists 1:1 conversations and their messages.
type ConversationStore interface {
	// FindConversation returns ErrNotFound for an unknown id.
	FindConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error)
	// FindByParticipants looks a conversation up by the unordered pair.
	FindByParticipants(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error)
	// CreateConversation returns ErrAlreadyExists when a conversation for the
	// pair exists, so concurrent first-contact sends create exactly one.
	CreateConversation(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error)
	// AppendMessage stores msg and updates the conversation's last-message
	// pointer and unread flag.
	AppendMessage(ctx context.Context, msg *domain.Message) error
	MarkRead(ctx context.Context, id domain.ConversationID, reader domain.UserID) error
}
