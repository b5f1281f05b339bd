package service

import (
	"context"
	"fmt"
	"time"

	"hustlex/internal/domain"
)

type ConversationService struct {
	messages *MessageService
	repo     domain.MessageRepository
}

func NewConversationService(messages *MessageService, repo domain.MessageRepository) *ConversationService {
	return &ConversationService{
		messages: messages,
		repo:     repo,
	}
}

// ConversationResponse is one row of a user's inbox.
type ConversationResponse struct {
	ConversationID string                 `json:"conversationId"`
	Partner        *domain.DisplayProfile `json:"partner"`
	LastMessage    string                 `json:"lastMessage"`
	LastMessageAt  time.Time              `json:"lastMessageAt"`
	LastSenderID   string                 `json:"lastSenderId"`
	UnreadCount    int                    `json:"unreadCount"`
}

// ListForUser returns the user's conversations, most recent first.
func (s *ConversationService) ListForUser(ctx context.Context, userID string, limit int) ([]*ConversationResponse, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}

	summaries, err := s.repo.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	res := make([]*ConversationResponse, 0, len(summaries))
	for _, c := range summaries {
		res = append(res, &ConversationResponse{
			ConversationID: c.ConversationID,
			Partner:        s.messages.Profile(ctx, c.PartnerID),
			LastMessage:    s.messages.open(c.ConversationID, c.LastMessage),
			LastMessageAt:  c.LastMessageAt,
			LastSenderID:   c.LastSenderID,
			UnreadCount:    c.UnreadCount,
		})
	}
	return res, nil
}
