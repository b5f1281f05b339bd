package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MessageType classifies what a chat message carries.
type MessageType string

const (
	MessageTypeText         MessageType = "text"
	MessageTypeVoice        MessageType = "voice"
	MessageTypeFiles        MessageType = "files"
	MessageTypeTextAndVoice MessageType = "text_and_voice"
	MessageTypeTextAndFiles MessageType = "text_and_files"
	MessageTypeMixed        MessageType = "mixed"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeVoice, MessageTypeFiles,
		MessageTypeTextAndVoice, MessageTypeTextAndFiles, MessageTypeMixed:
		return true
	}
	return false
}

// FileMeta describes one attachment of a message.
type FileMeta struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mimeType"`
	ContentRef string `json:"contentRef"`
}

// UnmarshalJSON accepts the legacy client keys (type, dataUrl, url, path)
// next to the canonical ones. Size may arrive as a number or a numeric string.
func (f *FileMeta) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*f = FileMeta{
		Name:       firstString(raw, "name", "filename", "fileName"),
		MimeType:   firstString(raw, "mimeType", "type", "mimetype"),
		ContentRef: firstString(raw, "contentRef", "dataUrl", "url", "path"),
	}
	if v, ok := raw["size"]; ok {
		f.Size = parseSize(v)
	}
	return nil
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func parseSize(v json.RawMessage) int64 {
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return int64(n)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// Message represents a single persisted chat message between two users.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	ReceiverID     string      `json:"receiverId"`
	Body           string      `json:"message"` // encrypted at rest when an encryptor is configured
	MessageType    MessageType `json:"messageType"`
	VoiceData      string      `json:"voiceData,omitempty"`
	VoiceDuration  *float64    `json:"voiceDuration,omitempty"`
	Files          []FileMeta  `json:"files"`
	IsRead         bool        `json:"isRead"`
	ReadAt         *time.Time  `json:"readAt,omitempty"`
	IsEdited       bool        `json:"isEdited"`
	EditedAt       *time.Time  `json:"editedAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// ProfileSnippet is the subset of a user profile shown next to messages.
type ProfileSnippet struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// DisplayProfile is the denormalized user info attached to outgoing payloads.
type DisplayProfile struct {
	ID      string         `json:"_id"`
	Email   string         `json:"email"`
	Profile ProfileSnippet `json:"profile"`
}

// ConversationSummary is the latest message of one conversation as seen by
// a participant.
type ConversationSummary struct {
	ConversationID string    `json:"conversationId"`
	PartnerID      string    `json:"partnerId"`
	LastMessage    string    `json:"lastMessage"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	LastSenderID   string    `json:"lastSenderId"`
	UnreadCount    int       `json:"unreadCount"`
}
