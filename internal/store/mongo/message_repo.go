package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"hustlex/internal/domain"
)

// messageDoc is the stored shape of a message.
type messageDoc struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	ConversationID string        `bson:"conversationId"`
	SenderID       string        `bson:"senderId"`
	ReceiverID     string        `bson:"receiverId"`
	Body           string        `bson:"message"`
	MessageType    string        `bson:"messageType"`
	VoiceData      string        `bson:"voiceData,omitempty"`
	VoiceDuration  *float64      `bson:"voiceDuration,omitempty"`
	Files          []fileDoc     `bson:"files"`
	IsRead         bool          `bson:"isRead"`
	ReadAt         *time.Time    `bson:"readAt,omitempty"`
	IsEdited       bool          `bson:"isEdited"`
	EditedAt       *time.Time    `bson:"editedAt,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt"`
}

type fileDoc struct {
	Name       string `bson:"name"`
	Size       int64  `bson:"size"`
	MimeType   string `bson:"mimeType"`
	ContentRef string `bson:"contentRef"`
}

// MessageRepo stores messages in the messages collection.
type MessageRepo struct {
	coll *mongo.Collection
	ping func(context.Context) error
}

func NewMessageRepo(c *Client) *MessageRepo {
	return &MessageRepo{coll: c.MessagesCollection(), ping: c.Ping}
}

var (
	_ domain.MessageRepository = (*MessageRepo)(nil)
	_ domain.Pinger            = (*MessageRepo)(nil)
)

func (r *MessageRepo) Ping(ctx context.Context) error {
	return r.ping(ctx)
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := toDoc(m)
	doc.ID = bson.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = doc.ID.Hex()
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var doc messageDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return fromDoc(&doc), nil
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	oid, err := bson.ObjectIDFromHex(m.ID)
	if err != nil {
		return domain.ErrNotFound
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := toDoc(m)
	update := bson.M{"$set": bson.M{
		"message":       doc.Body,
		"messageType":   doc.MessageType,
		"voiceData":     doc.VoiceData,
		"voiceDuration": doc.VoiceDuration,
		"files":         doc.Files,
		"isRead":        doc.IsRead,
		"readAt":        doc.ReadAt,
		"isEdited":      doc.IsEdited,
		"editedAt":      doc.EditedAt,
		"updatedAt":     now,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	m.UpdatedAt = now
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	res := make([]*domain.Message, 0, len(docs))
	for i := range docs {
		res = append(res, fromDoc(&docs[i]))
	}
	return res, nil
}

func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	now := time.Now().UTC()
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"conversationId": conversationID, "receiverId": receiverID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": now, "updatedAt": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return res.ModifiedCount, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func toDoc(m *domain.Message) *messageDoc {
	files := make([]fileDoc, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, fileDoc(f))
	}
	return &messageDoc{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Body:           m.Body,
		MessageType:    string(m.MessageType),
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

func fromDoc(d *messageDoc) *domain.Message {
	files := make([]domain.FileMeta, 0, len(d.Files))
	for _, f := range d.Files {
		files = append(files, domain.FileMeta(f))
	}
	return &domain.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Body:           d.Body,
		MessageType:    domain.MessageType(d.MessageType),
		VoiceData:      d.VoiceData,
		VoiceDuration:  d.VoiceDuration,
		Files:          files,
		IsRead:         d.IsRead,
		ReadAt:         d.ReadAt,
		IsEdited:       d.IsEdited,
		EditedAt:       d.EditedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
