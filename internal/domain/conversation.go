package domain

import (
	"sort"
	"strings"
)

// ConversationSeparator joins the two participant ids of a conversation id.
const ConversationSeparator = "_"

// ConversationID derives the grouping key for messages between a and b.
// The result does not depend on argument order.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ConversationSeparator)
}

// IsParticipant reports whether userID is one of the two sides of m.
func (m *Message) IsParticipant(userID string) bool {
	return userID != "" && (m.SenderID == userID || m.ReceiverID == userID)
}

// PartnerOf returns the participant of m that is not userID.
func (m *Message) PartnerOf(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
