package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hustlex/internal/domain"
	"hustlex/internal/presence"
	"hustlex/internal/security"
	"hustlex/internal/service"
)

func assignID(id string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		m := args.Get(1).(*domain.Message)
		m.ID = id
		m.CreatedAt = time.Now()
		m.UpdatedAt = m.CreatedAt
	}
}

func TestCreateMessage(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		repo.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
			return m.ConversationID == "u1_u2" && m.Body == "hi" && m.MessageType == domain.MessageTypeText
		})).Run(assignID("m1")).Return(nil)

		msg, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID:   "u2",
			ReceiverID: "u1",
			Body:       "  hi ",
		})
		require.NoError(t, err)
		assert.Equal(t, "m1", msg.ID)
		assert.Equal(t, "u1_u2", msg.ConversationID)
		assert.NotNil(t, msg.Files)
		repo.AssertExpectations(t)
	})

	t.Run("ExplicitConversationID", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		repo.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
			return m.ConversationID == "job-42"
		})).Run(assignID("m2")).Return(nil)

		msg, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", Body: "hello", ConversationID: "job-42",
		})
		require.NoError(t, err)
		assert.Equal(t, "job-42", msg.ConversationID)
	})

	t.Run("InfersType", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)
		repo.On("Create", mock.Anything, mock.Anything).Run(assignID("m3")).Return(nil)

		msg, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", VoiceData: "data:audio/webm;base64,AAA",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.MessageTypeVoice, msg.MessageType)

		msg, err = svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", Body: "see attached",
			Files: []domain.FileMeta{{Name: "a.pdf"}},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.MessageTypeTextAndFiles, msg.MessageType)
	})

	t.Run("Empty", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		_, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", Body: "   ",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("TooLong", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		_, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", Body: strings.Repeat("x", service.MaxBodyLength+1),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("UnknownType", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		_, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", Body: "hi", MessageType: "sticker",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)
		repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrDatabaseConnection)

		_, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", Body: "hi",
		})
		assert.ErrorIs(t, err, domain.ErrDatabaseConnection)
	})

	t.Run("EncryptsAtRest", func(t *testing.T) {
		repo := new(MockMessageRepo)
		enc, err := security.NewEncryptor([]byte("test key"), nil)
		require.NoError(t, err)
		svc := service.NewMessageService(repo, nil, enc, nil, 100)

		var stored string
		repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Message).Body
		}).Return(nil)

		msg, err := svc.CreateMessage(context.Background(), service.MessageCreateInput{
			SenderID: "u1", ReceiverID: "u2", Body: "secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "secret", msg.Body)
		assert.NotEqual(t, "secret", stored)

		plain, err := enc.Decrypt(stored)
		require.NoError(t, err)
		assert.Equal(t, "secret", plain)
	})
}

func TestEditMessage(t *testing.T) {
	original := func() *domain.Message {
		return &domain.Message{ID: "m1", ConversationID: "u1_u2", SenderID: "u1", ReceiverID: "u2", Body: "hi"}
	}

	t.Run("Success", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		repo.On("GetByID", mock.Anything, "m1").Return(original(), nil)
		repo.On("Update", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
			return m.Body == "hi there" && m.IsEdited && m.EditedAt != nil
		})).Return(nil)

		msg, err := svc.EditMessage(context.Background(), "u1", "m1", "hi there")
		require.NoError(t, err)
		assert.True(t, msg.IsEdited)
		assert.NotNil(t, msg.EditedAt)
		repo.AssertExpectations(t)
	})

	t.Run("NotOwner", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)
		repo.On("GetByID", mock.Anything, "m1").Return(original(), nil)

		_, err := svc.EditMessage(context.Background(), "u2", "m1", "hijacked")
		assert.ErrorIs(t, err, domain.ErrForbidden)

		var ownErr *service.OwnershipError
		require.True(t, errors.As(err, &ownErr))
		assert.Equal(t, "u2", ownErr.EditorID)
		assert.Equal(t, "u1", ownErr.OwnerID)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)
		repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

		_, err := svc.EditMessage(context.Background(), "u1", "missing", "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		_, err := svc.EditMessage(context.Background(), "u1", "m1", " ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestListMessages(t *testing.T) {
	t.Run("Chronological", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)

		newest := &domain.Message{ID: "m2", SenderID: "u2", ReceiverID: "u1", Body: "second"}
		oldest := &domain.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Body: "first"}
		repo.On("ListForConversation", mock.Anything, "u1_u2", 100).Return([]*domain.Message{newest, oldest}, nil)

		msgs, err := svc.ListMessages(context.Background(), "u1_u2", "u1", 0)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.Equal(t, "m2", msgs[1].ID)
	})

	t.Run("Outsider", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)
		repo.On("ListForConversation", mock.Anything, "u1_u2", 10).Return([]*domain.Message{
			{ID: "m1", SenderID: "u1", ReceiverID: "u2"},
		}, nil)

		_, err := svc.ListMessages(context.Background(), "u1_u2", "u3", 10)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("UnsetMaxHistory", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 0)
		repo.On("ListForConversation", mock.Anything, "u1_u2", service.DefaultMaxHistory).Return([]*domain.Message{
			{ID: "m1", SenderID: "u1", ReceiverID: "u2"},
		}, nil)

		msgs, err := svc.ListMessages(context.Background(), "u1_u2", "u1", 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
		repo.AssertExpectations(t)
	})

	t.Run("EmptyConversation", func(t *testing.T) {
		repo := new(MockMessageRepo)
		svc := service.NewMessageService(repo, nil, nil, nil, 100)
		repo.On("ListForConversation", mock.Anything, "u1_u9", 100).Return([]*domain.Message{}, nil)

		msgs, err := svc.ListMessages(context.Background(), "u1_u9", "u1", 500)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestResponses(t *testing.T) {
	profiles := new(MockProfileRepo)
	svc := service.NewMessageService(new(MockMessageRepo), profiles, nil, nil, 100)

	u1 := &domain.DisplayProfile{ID: "u1", Email: "ada@example.com", Profile: domain.ProfileSnippet{FirstName: "Ada"}}
	profiles.On("GetDisplayProfile", mock.Anything, "u1").Return(u1, nil)
	profiles.On("GetDisplayProfile", mock.Anything, "u2").Return(nil, errors.New("store down"))

	msg := &domain.Message{ID: "m1", ConversationID: "u1_u2", SenderID: "u1", ReceiverID: "u2", Body: "hi", IsEdited: true}

	t.Run("Sent", func(t *testing.T) {
		res := svc.ToResponse(context.Background(), msg)
		assert.Equal(t, "m1", res.MongoID)
		assert.Equal(t, "m1", res.ID)
		assert.Equal(t, u1, res.Sender)
		assert.Nil(t, res.Receiver)
		assert.NotNil(t, res.Files)
	})

	t.Run("Edited", func(t *testing.T) {
		res := svc.ToEditedResponse(context.Background(), msg)
		assert.Equal(t, "m1", res.MessageID)
		assert.Equal(t, "edit", res.Action)
		assert.True(t, res.IsEdit)
		assert.Equal(t, u1, res.Sender)
		assert.Equal(t, &domain.DisplayProfile{ID: "u2"}, res.Receiver)
	})
}

func TestConversationService(t *testing.T) {
	repo := new(MockMessageRepo)
	profiles := new(MockProfileRepo)
	msgSvc := service.NewMessageService(repo, profiles, nil, nil, 100)
	svc := service.NewConversationService(msgSvc, repo)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.On("ListConversations", mock.Anything, "u1", 50).Return([]*domain.ConversationSummary{
		{ConversationID: "u1_u2", PartnerID: "u2", LastMessage: "hey", LastMessageAt: at, LastSenderID: "u2", UnreadCount: 3},
	}, nil)
	profiles.On("GetDisplayProfile", mock.Anything, "u2").Return(&domain.DisplayProfile{ID: "u2", Email: "bo@example.com"}, nil)

	convs, err := svc.ListForUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "bo@example.com", convs[0].Partner.Email)
	assert.Equal(t, 3, convs[0].UnreadCount)
	assert.Equal(t, "hey", convs[0].LastMessage)
}

func TestUserService(t *testing.T) {
	profiles := new(MockProfileRepo)
	registry := presence.NewRegistry()
	svc := service.NewUserService(profiles, registry)

	registry.Connect("c1")
	require.NoError(t, registry.Bind("c1", "u1", false))

	profiles.On("GetDisplayProfile", mock.Anything, "u1").Return(&domain.DisplayProfile{ID: "u1"}, nil)
	profiles.On("GetDisplayProfile", mock.Anything, "u404").Return(nil, domain.ErrNotFound)

	u, err := svc.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, u.Online)

	_, err = svc.GetByID(context.Background(), "u404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []string{"u1"}, svc.ListOnline())
}
