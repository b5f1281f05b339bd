package domain

import (
	"context"
)

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	// Create assigns ID, CreatedAt and UpdatedAt on m.
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	Update(ctx context.Context, m *Message) error
	// ListForConversation returns the newest messages first.
	ListForConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	MarkConversationRead(ctx context.Context, conversationID, receiverID string) (int64, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]*ConversationSummary, error)
}

// ProfileRepository resolves display data for users. It is read only.
type ProfileRepository interface {
	GetDisplayProfile(ctx context.Context, userID string) (*DisplayProfile, error)
}

// Pinger is implemented by stores that can report their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
