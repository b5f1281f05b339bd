package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"hustlex/internal/domain"
)

type conversationRow struct {
	ConversationID string    `bson:"_id"`
	LastMessage    string    `bson:"lastMessage"`
	LastMessageAt  time.Time `bson:"lastMessageAt"`
	LastSenderID   string    `bson:"lastSenderId"`
	LastReceiverID string    `bson:"lastReceiverId"`
	UnreadCount    int       `bson:"unreadCount"`
}

// ListConversations groups userID's messages by conversation and keeps the
// newest one of each, along with the count unread by userID.
func (r *MessageRepo) ListConversations(ctx context.Context, userID string, limit int) ([]*domain.ConversationSummary, error) {
	pipeline := bson.A{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "senderId", Value: userID}},
				bson.D{{Key: "receiverId", Value: userID}},
			}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$conversationId"},
			{Key: "lastMessage", Value: bson.D{{Key: "$first", Value: "$message"}}},
			{Key: "lastMessageAt", Value: bson.D{{Key: "$first", Value: "$createdAt"}}},
			{Key: "lastSenderId", Value: bson.D{{Key: "$first", Value: "$senderId"}}},
			{Key: "lastReceiverId", Value: bson.D{{Key: "$first", Value: "$receiverId"}}},
			{Key: "unreadCount", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$and", Value: bson.A{
						bson.D{{Key: "$eq", Value: bson.A{"$receiverId", userID}}},
						bson.D{{Key: "$eq", Value: bson.A{"$isRead", false}}},
					}}},
					1,
					0,
				}},
			}}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "lastMessageAt", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []conversationRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	res := make([]*domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		partner := row.LastReceiverID
		if partner == userID {
			partner = row.LastSenderID
		}
		res = append(res, &domain.ConversationSummary{
			ConversationID: row.ConversationID,
			PartnerID:      partner,
			LastMessage:    row.LastMessage,
			LastMessageAt:  row.LastMessageAt,
			LastSenderID:   row.LastSenderID,
			UnreadCount:    row.UnreadCount,
		})
	}
	return res, nil
}
