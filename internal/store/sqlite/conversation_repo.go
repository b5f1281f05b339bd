package sqlite

import (
	"context"
	"fmt"
	"time"

	"hustlex/internal/domain"
)

// Conversations are not stored entities: they are the messages grouped by
// conversation_id. These queries work on that grouping.

func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1, read_at = ?, updated_at = ?
		WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0
	`, now, now, conversationID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListConversations returns the latest message of every conversation userID
// takes part in, newest first, with the number of messages still unread by
// userID.
func (r *MessageRepo) ListConversations(ctx context.Context, userID string, limit int) ([]*domain.ConversationSummary, error) {
	query := `
		SELECT conversation_id, sender_id, receiver_id, body, created_at, unread
		FROM (
			SELECT conversation_id, sender_id, receiver_id, body, created_at,
			       ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY created_at DESC, rowid DESC) AS rn,
			       SUM(CASE WHEN receiver_id = ? AND is_read = 0 THEN 1 ELSE 0 END)
			           OVER (PARTITION BY conversation_id) AS unread
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
		)
		WHERE rn = 1
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	res := make([]*domain.ConversationSummary, 0)
	for rows.Next() {
		var (
			c          domain.ConversationSummary
			receiverID string
		)
		if err := rows.Scan(
			&c.ConversationID,
			&c.LastSenderID,
			&receiverID,
			&c.LastMessage,
			&c.LastMessageAt,
			&c.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.PartnerID = receiverID
		if receiverID == userID {
			c.PartnerID = c.LastSenderID
		}
		res = append(res, &c)
	}
	return res, rows.Err()
}
