package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"hustlex/internal/domain"
)

// Inbound events.
const (
	EventJoin        = "join"
	EventSendMessage = "sendMessage"
	EventEditMessage = "editMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
)

// Outbound events.
const (
	EventNewMessage        = "newMessage"
	EventMessageSent       = "messageSent"
	EventMessageEdited     = "messageEdited"
	EventMessageError      = "messageError"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
)

// Error strings shown to clients in messageError events.
const (
	ErrTextSendFailed     = "Failed to send message"
	ErrTextNotFound       = "Message not found"
	ErrTextUnauthorized   = "Unauthorized to edit this message"
	ErrTextEditFailed     = "Failed to edit message"
	ErrTextJoinRequired   = "Join before sending or editing messages"
	ErrTextIdentity       = "Identity does not match the authenticated user"
	ErrTextInvalidPayload = "Invalid payload"
	ErrTextRateLimited    = "Too many requests"
)

type SendPayload struct {
	SenderID       string             `json:"senderId"`
	ReceiverID     string             `json:"receiverId"`
	Message        string             `json:"message"`
	ConversationID string             `json:"conversationId,omitempty"`
	MessageType    domain.MessageType `json:"messageType,omitempty"`
	VoiceData      string             `json:"voiceData,omitempty"`
	VoiceDuration  json.RawMessage    `json:"voiceDuration,omitempty"`
	Files          json.RawMessage    `json:"files,omitempty"`
}

// voiceDuration accepts seconds as a JSON number or a numeric string.
// null, "" and an absent field mean no duration.
func (p SendPayload) voiceDuration() (*float64, error) {
	raw := bytes.TrimSpace(p.VoiceDuration)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("voiceDuration: %w", domain.ErrInvalidInput)
	}
	if s = strings.TrimSpace(s); s == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("voiceDuration %q: %w", s, domain.ErrInvalidInput)
	}
	return &n, nil
}

// EditPayload identifies the target message by messageId, or by _id / id
// as older clients send it. SenderID, ReceiverID and ConversationID are
// advisory only.
type EditPayload struct {
	MessageID      string `json:"messageId"`
	MongoID        string `json:"_id,omitempty"`
	ID             string `json:"id,omitempty"`
	Message        string `json:"message"`
	SenderID       string `json:"senderId,omitempty"`
	ReceiverID     string `json:"receiverId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

func (p EditPayload) targetID() string {
	switch {
	case p.MessageID != "":
		return p.MessageID
	case p.MongoID != "":
		return p.MongoID
	}
	return p.ID
}

type TypingPayload struct {
	ReceiverID     string `json:"receiverId"`
	ConversationID string `json:"conversationId"`
}

// TypingEvent is relayed to the receiver of a typing indicator.
type TypingEvent struct {
	SenderID       string `json:"senderId"`
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
