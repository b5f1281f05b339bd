package service

import (
	"context"
	"time"

	"hustlex/internal/domain"
)

// MessageResponse is the message shape delivered to clients, over both the
// socket and the REST API. The id is exposed as "_id" and "id".
type MessageResponse struct {
	MongoID        string                 `json:"_id"`
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversationId"`
	SenderID       string                 `json:"senderId"`
	ReceiverID     string                 `json:"receiverId"`
	Message        string                 `json:"message"`
	MessageType    domain.MessageType     `json:"messageType"`
	VoiceData      string                 `json:"voiceData,omitempty"`
	VoiceDuration  *float64               `json:"voiceDuration,omitempty"`
	Files          []domain.FileMeta      `json:"files"`
	IsRead         bool                   `json:"isRead"`
	ReadAt         *time.Time             `json:"readAt,omitempty"`
	IsEdited       bool                   `json:"isEdited"`
	EditedAt       *time.Time             `json:"editedAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	Sender         *domain.DisplayProfile `json:"sender,omitempty"`
	Receiver       *domain.DisplayProfile `json:"receiver,omitempty"`
}

// EditedMessageResponse is the messageEdited payload.
type EditedMessageResponse struct {
	*MessageResponse
	MessageID string `json:"messageId"`
	Action    string `json:"action"`
	IsEdit    bool   `json:"isEdit"`
}

func newMessageResponse(m *domain.Message) *MessageResponse {
	files := m.Files
	if files == nil {
		files = []domain.FileMeta{}
	}
	return &MessageResponse{
		MongoID:        m.ID,
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Message:        m.Body,
		MessageType:    m.MessageType,
		VoiceData:      m.VoiceData,
		VoiceDuration:  m.VoiceDuration,
		Files:          files,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ToResponse converts a message into its client shape, enriched with the
// sender's display profile. The body must already be plaintext.
func (s *MessageService) ToResponse(ctx context.Context, m *domain.Message) *MessageResponse {
	res := newMessageResponse(m)
	res.Sender = s.Profile(ctx, m.SenderID)
	return res
}

// ToResponses converts a slice of messages, resolving each profile once.
func (s *MessageService) ToResponses(ctx context.Context, msgs []*domain.Message) []*MessageResponse {
	profiles := make(map[string]*domain.DisplayProfile)
	res := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		dto := newMessageResponse(m)
		p, ok := profiles[m.SenderID]
		if !ok {
			p = s.Profile(ctx, m.SenderID)
			profiles[m.SenderID] = p
		}
		dto.Sender = p
		res = append(res, dto)
	}
	return res
}

// ToEditedResponse builds the messageEdited payload with both participants'
// profiles.
func (s *MessageService) ToEditedResponse(ctx context.Context, m *domain.Message) *EditedMessageResponse {
	res := newMessageResponse(m)
	res.Sender = s.Profile(ctx, m.SenderID)
	res.Receiver = s.Profile(ctx, m.ReceiverID)
	return &EditedMessageResponse{
		MessageResponse: res,
		MessageID:       m.ID,
		Action:          "edit",
		IsEdit:          true,
	}
}
