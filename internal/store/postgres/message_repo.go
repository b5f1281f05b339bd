package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hustlex/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var (
	_ domain.MessageRepository = (*MessageRepo)(nil)
	_ domain.Pinger            = (*MessageRepo)(nil)
)

const messageColumns = `id::text, conversation_id, sender_id, receiver_id, body, message_type,
	voice_data, voice_duration, files, is_read, read_at, is_edited, edited_at, created_at, updated_at`

func (r *MessageRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabaseConnection, err)
	}
	return nil
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	files, err := encodeFiles(m.Files)
	if err != nil {
		return err
	}
	id := uuid.New()

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, sender_id, receiver_id, body, message_type,
			 voice_data, voice_duration, files, is_read, read_at, is_edited, edited_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING created_at, updated_at
	`, id, m.ConversationID, m.SenderID, m.ReceiverID, m.Body, string(m.MessageType),
		m.VoiceData, m.VoiceDuration, files, m.IsRead, m.ReadAt, m.IsEdited, m.EditedAt,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = id.String()
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	m, err := scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	if _, err := uuid.Parse(m.ID); err != nil {
		return domain.ErrNotFound
	}
	files, err := encodeFiles(m.Files)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
		UPDATE messages
		SET body=$1, message_type=$2, voice_data=$3, voice_duration=$4, files=$5,
		    is_read=$6, read_at=$7, is_edited=$8, edited_at=$9, updated_at=NOW()
		WHERE id=$10
		RETURNING updated_at
	`, m.Body, string(m.MessageType), m.VoiceData, m.VoiceDuration, files,
		m.IsRead, m.ReadAt, m.IsEdited, m.EditedAt, m.ID,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// ListForConversation returns every message when limit is not positive.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	// LIMIT NULL means no limit
	pgLimit := sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, pgLimit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return r.scanMessages(rows)
}

func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read=TRUE, read_at=NOW(), updated_at=NOW()
		WHERE conversation_id=$1 AND receiver_id=$2 AND is_read=FALSE
	`, conversationID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return res.RowsAffected()
}

// ── helpers ──────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*domain.Message, error) {
	var (
		m        domain.Message
		msgType  string
		duration sql.NullFloat64
		files    []byte
		readAt   sql.NullTime
		editedAt sql.NullTime
	)
	if err := s.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Body, &msgType,
		&m.VoiceData, &duration, &files, &m.IsRead, &readAt, &m.IsEdited, &editedAt,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.MessageType = domain.MessageType(msgType)
	if duration.Valid {
		m.VoiceDuration = &duration.Float64
	}
	if readAt.Valid {
		m.ReadAt = &readAt.Time
	}
	if editedAt.Valid {
		m.EditedAt = &editedAt.Time
	}
	m.Files = []domain.FileMeta{}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &m.Files); err != nil {
			return nil, fmt.Errorf("decode files of %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func (r *MessageRepo) scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()
	res := make([]*domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func encodeFiles(files []domain.FileMeta) (string, error) {
	if files == nil {
		files = []domain.FileMeta{}
	}
	b, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("encode files: %w", err)
	}
	return string(b), nil
}
