package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hustlex/internal/domain"
	"hustlex/internal/security"
)

const (
	// MaxBodyLength is the longest message body accepted, in runes.
	MaxBodyLength = 5000
	// DefaultMaxHistory caps a history page when MaxHistory is not set.
	DefaultMaxHistory = 1000
)

// OwnershipError is returned when a user tries to edit a message sent by
// somebody else. It matches domain.ErrForbidden.
type OwnershipError struct {
	MessageID string
	EditorID  string
	OwnerID   string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("user %s may not edit message %s owned by %s", e.EditorID, e.MessageID, e.OwnerID)
}

func (e *OwnershipError) Unwrap() error { return domain.ErrForbidden }

type MessageService struct {
	messages  domain.MessageRepository
	profiles  domain.ProfileRepository
	encryptor *security.Encryptor // nil disables at-rest encryption
	logger    *slog.Logger

	MaxHistory int
}

func NewMessageService(
	messages domain.MessageRepository,
	profiles domain.ProfileRepository,
	encryptor *security.Encryptor,
	logger *slog.Logger,
	maxHistory int,
) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		messages:   messages,
		profiles:   profiles,
		encryptor:  encryptor,
		logger:     logger,
		MaxHistory: maxHistory,
	}
}

type MessageCreateInput struct {
	SenderID       string
	ReceiverID     string
	Body           string
	ConversationID string
	MessageType    domain.MessageType
	VoiceData      string
	VoiceDuration  *float64
	Files          []domain.FileMeta
}

// CreateMessage validates and persists a new message. The returned message
// carries the plaintext body even when the stored copy is encrypted.
func (s *MessageService) CreateMessage(ctx context.Context, in MessageCreateInput) (*domain.Message, error) {
	if in.SenderID == "" || in.ReceiverID == "" {
		return nil, fmt.Errorf("sender and receiver are required: %w", domain.ErrInvalidInput)
	}

	body := strings.TrimSpace(in.Body)
	if len([]rune(body)) > MaxBodyLength {
		return nil, fmt.Errorf("message exceeds %d characters: %w", MaxBodyLength, domain.ErrInvalidInput)
	}
	if body == "" && in.VoiceData == "" && len(in.Files) == 0 {
		return nil, fmt.Errorf("message is empty: %w", domain.ErrInvalidInput)
	}

	msgType := in.MessageType
	if msgType == "" {
		msgType = inferType(body, in.VoiceData, in.Files)
	}
	if !msgType.Valid() {
		return nil, fmt.Errorf("unknown message type %q: %w", msgType, domain.ErrInvalidInput)
	}

	convID := in.ConversationID
	if convID == "" {
		convID = domain.ConversationID(in.SenderID, in.ReceiverID)
	}

	files := in.Files
	if files == nil {
		files = []domain.FileMeta{}
	}

	stored, err := s.seal(body)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: convID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Body:           stored,
		MessageType:    msgType,
		VoiceData:      in.VoiceData,
		VoiceDuration:  in.VoiceDuration,
		Files:          files,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	msg.Body = body
	return msg, nil
}

func inferType(body, voice string, files []domain.FileMeta) domain.MessageType {
	hasText, hasVoice, hasFiles := body != "", voice != "", len(files) > 0
	switch {
	case hasVoice && hasFiles:
		return domain.MessageTypeMixed
	case hasText && hasVoice:
		return domain.MessageTypeTextAndVoice
	case hasText && hasFiles:
		return domain.MessageTypeTextAndFiles
	case hasVoice:
		return domain.MessageTypeVoice
	case hasFiles:
		return domain.MessageTypeFiles
	}
	return domain.MessageTypeText
}

// EditMessage replaces the body of a message sent by editorID.
func (s *MessageService) EditMessage(ctx context.Context, editorID, messageID, newBody string) (*domain.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id is required: %w", domain.ErrInvalidInput)
	}
	body := strings.TrimSpace(newBody)
	if body == "" {
		return nil, fmt.Errorf("message is empty: %w", domain.ErrInvalidInput)
	}
	if len([]rune(body)) > MaxBodyLength {
		return nil, fmt.Errorf("message exceeds %d characters: %w", MaxBodyLength, domain.ErrInvalidInput)
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg.SenderID != editorID {
		return nil, &OwnershipError{MessageID: messageID, EditorID: editorID, OwnerID: msg.SenderID}
	}

	stored, err := s.seal(body)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	msg.Body = stored
	msg.IsEdited = true
	msg.EditedAt = &now
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	msg.Body = body
	return msg, nil
}

// ListMessages returns the latest messages of a conversation in
// chronological order. Messages the caller is not part of are never
// returned; a conversation holding only such messages is forbidden.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, userID string, limit int) ([]*domain.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required: %w", domain.ErrInvalidInput)
	}
	ceiling := s.MaxHistory
	if ceiling <= 0 {
		ceiling = DefaultMaxHistory
	}
	if limit <= 0 || limit > ceiling {
		limit = ceiling
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	visible := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsParticipant(userID) {
			m.Body = s.open(m.ID, m.Body)
			visible = append(visible, m)
		}
	}
	if len(msgs) > 0 && len(visible) == 0 {
		return nil, domain.ErrForbidden
	}

	// Reverse to chronological order (store returns newest first)
	for i, j := 0, len(visible)-1; i < j; i, j = i+1, j-1 {
		visible[i], visible[j] = visible[j], visible[i]
	}
	return visible, nil
}

// MarkConversationRead marks every unread message addressed to userID in
// the conversation as read and returns how many changed.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error) {
	if conversationID == "" || userID == "" {
		return 0, domain.ErrInvalidInput
	}
	return s.messages.MarkConversationRead(ctx, conversationID, userID)
}

// Profile resolves display data for a user. Lookup failures degrade to a
// bare profile carrying only the id.
func (s *MessageService) Profile(ctx context.Context, userID string) *domain.DisplayProfile {
	if userID == "" || s.profiles == nil {
		return &domain.DisplayProfile{ID: userID}
	}
	p, err := s.profiles.GetDisplayProfile(ctx, userID)
	if err != nil || p == nil {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("profile lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return &domain.DisplayProfile{ID: userID}
	}
	return p
}

func (s *MessageService) seal(body string) (string, error) {
	if s.encryptor == nil || body == "" {
		return body, nil
	}
	enc, err := s.encryptor.Encrypt(body)
	if err != nil {
		return "", fmt.Errorf("encrypt message: %w", err)
	}
	return enc, nil
}

// open falls back to the raw body when decryption fails.
func (s *MessageService) open(messageID, body string) string {
	if s.encryptor == nil || body == "" {
		return body
	}
	dec, err := s.encryptor.Decrypt(body)
	if err != nil {
		s.logger.Warn("message body could not be decrypted", slog.String("message_id", messageID), slog.Any("error", err))
		return body
	}
	return dec
}
