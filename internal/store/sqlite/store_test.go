package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hustlex/internal/domain"
	"hustlex/internal/store/sqlite"
)

func newRepos(t *testing.T) (*sqlite.MessageRepo, *sqlite.ProfileRepo) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	require.NoError(t, sqlite.Migrate(db), "migrations must be idempotent")
	return sqlite.NewMessageRepo(db), sqlite.NewProfileRepo(db)
}

// seedProfile writes a users row the way the account service would.
func seedProfile(t *testing.T, db *sql.DB, p *domain.DisplayProfile) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (id, email, first_name, last_name, avatar)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			avatar = excluded.avatar
	`, p.ID, p.Email, p.Profile.FirstName, p.Profile.LastName, p.Profile.Avatar)
	require.NoError(t, err)
}

func newMessage(from, to, body string) *domain.Message {
	return &domain.Message{
		ConversationID: domain.ConversationID(from, to),
		SenderID:       from,
		ReceiverID:     to,
		Body:           body,
		MessageType:    domain.MessageTypeText,
	}
}

func TestMessageRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo, _ := newRepos(t)
		duration := 3.5
		m := newMessage("u1", "u2", "hi")
		m.MessageType = domain.MessageTypeMixed
		m.VoiceData = "data:audio/webm;base64,AAA"
		m.VoiceDuration = &duration
		m.Files = []domain.FileMeta{{Name: "a.pdf", Size: 10, MimeType: "application/pdf", ContentRef: "/a"}}

		require.NoError(t, repo.Create(ctx, m))
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "u1_u2", got.ConversationID)
		assert.Equal(t, "hi", got.Body)
		assert.Equal(t, domain.MessageTypeMixed, got.MessageType)
		require.NotNil(t, got.VoiceDuration)
		assert.InDelta(t, 3.5, *got.VoiceDuration, 0.001)
		assert.Equal(t, m.Files, got.Files)
		assert.Nil(t, got.EditedAt)
		assert.WithinDuration(t, m.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo, _ := newRepos(t)
		_, err := repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		repo, _ := newRepos(t)
		m := newMessage("u1", "u2", "hi")
		require.NoError(t, repo.Create(ctx, m))

		edited := time.Now().UTC()
		m.Body = "hi there"
		m.IsEdited = true
		m.EditedAt = &edited
		require.NoError(t, repo.Update(ctx, m))

		got, err := repo.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "hi there", got.Body)
		assert.True(t, got.IsEdited)
		require.NotNil(t, got.EditedAt)
		assert.WithinDuration(t, edited, *got.EditedAt, time.Millisecond)
		assert.NotNil(t, got.Files)

		missing := newMessage("u1", "u2", "x")
		missing.ID = "nope"
		assert.ErrorIs(t, repo.Update(ctx, missing), domain.ErrNotFound)
	})

	t.Run("ListForConversation", func(t *testing.T) {
		repo, _ := newRepos(t)
		for _, body := range []string{"one", "two", "three"} {
			require.NoError(t, repo.Create(ctx, newMessage("u1", "u2", body)))
		}
		require.NoError(t, repo.Create(ctx, newMessage("u1", "u3", "elsewhere")))

		msgs, err := repo.ListForConversation(ctx, "u1_u2", 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "three", msgs[0].Body)
		assert.Equal(t, "two", msgs[1].Body)

		msgs, err = repo.ListForConversation(ctx, "u1_u2", 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 3, "non-positive limit returns everything")

		msgs, err = repo.ListForConversation(ctx, "u8_u9", 10)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("Conversations", func(t *testing.T) {
		repo, _ := newRepos(t)
		require.NoError(t, repo.Create(ctx, newMessage("u2", "u1", "hey")))
		require.NoError(t, repo.Create(ctx, newMessage("u2", "u1", "you there?")))
		require.NoError(t, repo.Create(ctx, newMessage("u1", "u3", "hello u3")))

		convs, err := repo.ListConversations(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, convs, 2)

		assert.Equal(t, "u1_u3", convs[0].ConversationID)
		assert.Equal(t, "u3", convs[0].PartnerID)
		assert.Equal(t, 0, convs[0].UnreadCount)

		assert.Equal(t, "u1_u2", convs[1].ConversationID)
		assert.Equal(t, "u2", convs[1].PartnerID)
		assert.Equal(t, "you there?", convs[1].LastMessage)
		assert.Equal(t, 2, convs[1].UnreadCount)

		n, err := repo.MarkConversationRead(ctx, "u1_u2", "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.MarkConversationRead(ctx, "u1_u2", "u1")
		require.NoError(t, err)
		assert.Zero(t, n)

		convs, err = repo.ListConversations(ctx, "u1", 10)
		require.NoError(t, err)
		assert.Equal(t, 0, convs[1].UnreadCount)

		msgs, err := repo.ListForConversation(ctx, "u1_u2", 10)
		require.NoError(t, err)
		for _, m := range msgs {
			assert.True(t, m.IsRead)
			assert.NotNil(t, m.ReadAt)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		repo, _ := newRepos(t)
		assert.NoError(t, repo.Ping(ctx))
	})

	t.Run("PingClosed", func(t *testing.T) {
		db, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		repo := sqlite.NewMessageRepo(db)
		require.NoError(t, db.Close())
		assert.ErrorIs(t, repo.Ping(ctx), domain.ErrDatabaseConnection)
	})
}

func TestOpenUnreachablePath(t *testing.T) {
	_, err := sqlite.Open(filepath.Join(t.TempDir(), "missing", "dir", "chat.db"))
	assert.ErrorContains(t, err, "sqlite")
}

func TestProfileRepo(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	profiles := sqlite.NewProfileRepo(db)

	p := &domain.DisplayProfile{
		ID:      "652f1c0e9a1b2c3d4e5f6a7b",
		Email:   "ada@example.com",
		Profile: domain.ProfileSnippet{FirstName: "Ada", LastName: "Lovelace"},
	}
	seedProfile(t, db, p)

	got, err := profiles.GetDisplayProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.Profile.Avatar = "/avatars/ada.png"
	seedProfile(t, db, p)
	got, err = profiles.GetDisplayProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "/avatars/ada.png", got.Profile.Avatar)

	_, err = profiles.GetDisplayProfile(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
