package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	ConversationID string
	MessageID      string
)

// Conversation is a 1:1 thread between two users, keyed by the unordered
// participant pair so (a,b) and (b,a) resolve to the same thread.
type Conversation struct {
	ID            ConversationID `json:"id"`
	Participants  [2]UserID      `json:"participants"`
	LastMessageID MessageID      `json:"lastMessageId,omitempty"`
	Unread        bool           `json:"unread"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	Sender         UserID         `json:"sender"`
	Receiver       UserID         `json:"receiver"`
	Body           string         `json:"body"`
	SentAt         time.Time      `json:"sentAt"`
}

// PairKey returns a stable key for the unordered participant pair.
func PairKey(a, b UserID) string {
	if strings.Compare(string(a), string(b)) > 0 {
		a, b = b, a
	}
	return string(a) + ":" + string(b)
}

func NewConversation(a, b UserID) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:           ConversationID(uuid.NewString()),
		Participants: [2]UserID{a, b},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NewMessage(conv ConversationID, sender, receiver UserID, body string) *Message {
	return &Message{
		ID:             MessageID(uuid.NewString()),
		ConversationID: conv,
		Sender:         sender,
		Receiver:       receiver,
		Body:           body,
		SentAt:         time.Now(),
	}
}
