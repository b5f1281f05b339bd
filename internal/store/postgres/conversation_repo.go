package postgres

import (
	"context"
	"fmt"

	"hustlex/internal/domain"
)

// ListConversations returns the latest message of every conversation userID
// takes part in, newest first, with the count of messages unread by userID.
func (r *MessageRepo) ListConversations(ctx context.Context, userID string, limit int) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, sender_id, receiver_id, body, created_at, unread
		FROM (
			SELECT conversation_id, sender_id, receiver_id, body, created_at,
			       ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY created_at DESC) AS rn,
			       COUNT(*) FILTER (WHERE receiver_id = $1 AND NOT is_read)
			           OVER (PARTITION BY conversation_id) AS unread
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		) latest
		WHERE rn = 1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	res := make([]*domain.ConversationSummary, 0)
	for rows.Next() {
		c := &domain.ConversationSummary{}
		var receiverID string
		if err := rows.Scan(&c.ConversationID, &c.LastSenderID, &receiverID, &c.LastMessage, &c.LastMessageAt, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.PartnerID = receiverID
		if receiverID == userID {
			c.PartnerID = c.LastSenderID
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
