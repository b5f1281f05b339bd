package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

const messageColumns = `id, conversation_id, sender_id, receiver_id, body, message_type,
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
	now := time.Now().UTC()

	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, query,
		id,
		m.ConversationID,
		m.SenderID,
		m.ReceiverID,
		m.Body,
		string(m.MessageType),
		m.VoiceData,
		nullFloat(m.VoiceDuration),
		files,
		m.IsRead,
		nullTime(m.ReadAt),
		m.IsEdited,
		nullTime(m.EditedAt),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	files, err := encodeFiles(m.Files)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET body = ?, message_type = ?, voice_data = ?, voice_duration = ?, files = ?,
		    is_read = ?, read_at = ?, is_edited = ?, edited_at = ?, updated_at = ?
		WHERE id = ?
	`, m.Body, string(m.MessageType), m.VoiceData, nullFloat(m.VoiceDuration), files,
		m.IsRead, nullTime(m.ReadAt), m.IsEdited, nullTime(m.EditedAt), now, m.ID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	m.UpdatedAt = now
	return nil
}

// ListForConversation returns every message when limit is not positive.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
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
		files    string
		readAt   sql.NullTime
		editedAt sql.NullTime
	)
	if err := s.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Body,
		&msgType,
		&m.VoiceData,
		&duration,
		&files,
		&m.IsRead,
		&readAt,
		&m.IsEdited,
		&editedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
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
	if files != "" {
		if err := json.Unmarshal([]byte(files), &m.Files); err != nil {
			return nil, fmt.Errorf("decode files of %s: %w", m.ID, err)
		}
	}
	return &m, nil
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

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
