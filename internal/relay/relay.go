// Package relay connects transport events to persisted chat state: it keeps
// presence current, stores messages and edits, and delivers them to
// whichever participants are online at that moment. Offline participants
// catch up through the history API.
package relay

import (
	"context"
	"errors"
	"log/slog"

	"hustlex/internal/domain"
	"hustlex/internal/presence"
	"hustlex/internal/service"
)

// Emitter delivers a named event to one live connection.
type Emitter interface {
	Emit(connID, event string, payload any) error
}

type Options struct {
	// AllowUnbound lets connections that never joined send and edit
	// messages as the senderId named in the payload.
	AllowUnbound bool
}

type Relay struct {
	presence *presence.Registry
	messages *service.MessageService
	emitter  Emitter
	logger   *slog.Logger
	opts     Options
}

func New(
	registry *presence.Registry,
	messages *service.MessageService,
	emitter Emitter,
	logger *slog.Logger,
	opts Options,
) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		presence: registry,
		messages: messages,
		emitter:  emitter,
		logger:   logger,
		opts:     opts,
	}
}

// OnConnect registers a new connection. authUserID is the user proven by a
// handshake token, or "" for an anonymous connection that must join.
func (r *Relay) OnConnect(connID, authUserID string) {
	r.presence.Connect(connID)
	if authUserID == "" {
		r.logger.Debug("connection opened", slog.String("conn_id", connID))
		return
	}
	if err := r.presence.Bind(connID, authUserID, true); err != nil {
		r.logger.Error("bind authenticated connection", slog.String("conn_id", connID), slog.Any("error", err))
		return
	}
	r.logger.Info("user online", slog.String("conn_id", connID), slog.String("user_id", authUserID), slog.Bool("authenticated", true))
}

// OnJoin makes connID the delivery target for userID. The announced id is
// trusted unless the connection already carries a verified identity.
func (r *Relay) OnJoin(connID, userID string) {
	if err := r.presence.Bind(connID, userID, false); err != nil {
		if errors.Is(err, domain.ErrIdentityMismatch) {
			bound, _ := r.presence.UserOf(connID)
			r.logger.Warn("join rejected",
				slog.String("conn_id", connID),
				slog.String("claimed_user_id", userID),
				slog.String("user_id", bound))
			r.emitError(connID, ErrTextIdentity)
			return
		}
		r.logger.Warn("join failed", slog.String("conn_id", connID), slog.String("user_id", userID), slog.Any("error", err))
		r.emitError(connID, ErrTextInvalidPayload)
		return
	}
	r.logger.Info("user online", slog.String("conn_id", connID), slog.String("user_id", userID))
}

// OnSendMessage persists a message, delivers newMessage to the receiver if
// online and always confirms to the caller with messageSent.
func (r *Relay) OnSendMessage(ctx context.Context, connID string, p SendPayload) {
	senderID, err := r.actingUser(connID, p.SenderID)
	if errors.Is(err, domain.ErrUnboundConnection) {
		r.logger.Warn("send rejected: connection has no bound user",
			slog.String("conn_id", connID),
			slog.String("claimed_user_id", p.SenderID))
		r.emitError(connID, ErrTextJoinRequired)
		return
	}
	if p.SenderID != "" && p.SenderID != senderID {
		r.logger.Warn("send rejected: sender does not match connection",
			slog.String("conn_id", connID),
			slog.String("claimed_user_id", p.SenderID),
			slog.String("user_id", senderID))
		r.emitError(connID, ErrTextSendFailed)
		return
	}

	duration, err := p.voiceDuration()
	if err != nil {
		r.logger.Warn("send rejected: bad voice duration",
			slog.String("conn_id", connID),
			slog.String("user_id", senderID),
			slog.Any("error", err))
		r.emitError(connID, ErrTextSendFailed)
		return
	}

	files, malformed := service.NormalizeFiles(p.Files)
	if malformed {
		r.logger.Warn("malformed files payload", slog.String("conn_id", connID), slog.String("user_id", senderID))
	}

	msg, err := r.messages.CreateMessage(ctx, service.MessageCreateInput{
		SenderID:       senderID,
		ReceiverID:     p.ReceiverID,
		Body:           p.Message,
		ConversationID: p.ConversationID,
		MessageType:    p.MessageType,
		VoiceData:      p.VoiceData,
		VoiceDuration:  duration,
		Files:          files,
	})
	if err != nil {
		r.logger.Error("send message", slog.String("conn_id", connID), slog.String("user_id", senderID), slog.Any("error", err))
		r.emitError(connID, ErrTextSendFailed)
		return
	}

	res := r.messages.ToResponse(ctx, msg)
	if receiverConn, online := r.presence.Lookup(msg.ReceiverID); online {
		r.emit(receiverConn, EventNewMessage, res)
	}
	r.emit(connID, EventMessageSent, res)

	r.logger.Debug("message sent",
		slog.String("conn_id", connID),
		slog.String("user_id", senderID),
		slog.String("message_id", msg.ID))
}

// OnEditMessage edits a message on behalf of the identity bound to connID.
func (r *Relay) OnEditMessage(ctx context.Context, connID string, p EditPayload) {
	editorID, err := r.actingUser(connID, p.SenderID)
	if errors.Is(err, domain.ErrUnboundConnection) {
		r.logger.Warn("edit rejected: connection has no bound user",
			slog.String("conn_id", connID),
			slog.String("claimed_user_id", p.SenderID),
			slog.String("message_id", p.targetID()))
		r.emitError(connID, ErrTextUnauthorized)
		return
	}

	if _, err := r.edit(ctx, connID, editorID, p.targetID(), p.Message); err != nil {
		r.emitError(connID, editErrorText(err))
	}
}

// EditAsUser runs the edit flow for an already authenticated user outside
// any socket, such as the REST API, and fans the result out the same way.
func (r *Relay) EditAsUser(ctx context.Context, userID, messageID, body string) (*service.EditedMessageResponse, error) {
	return r.edit(ctx, "", userID, messageID, body)
}

func (r *Relay) edit(ctx context.Context, connID, editorID, messageID, body string) (*service.EditedMessageResponse, error) {
	msg, err := r.messages.EditMessage(ctx, editorID, messageID, body)
	if err != nil {
		var ownErr *service.OwnershipError
		if errors.As(err, &ownErr) {
			r.logger.Warn("unauthorized edit",
				slog.String("conn_id", connID),
				slog.String("message_id", messageID),
				slog.String("claimed_user_id", ownErr.EditorID),
				slog.String("owner_id", ownErr.OwnerID))
		} else {
			r.logger.Error("edit message",
				slog.String("conn_id", connID),
				slog.String("user_id", editorID),
				slog.String("message_id", messageID),
				slog.Any("error", err))
		}
		return nil, err
	}

	res := r.messages.ToEditedResponse(ctx, msg)

	// Receiver first, then the sender's presence connection (the edit may
	// come from another device), then the caller. Each connection once.
	delivered := map[string]bool{"": true, connID: true}
	for _, userID := range []string{msg.ReceiverID, msg.SenderID} {
		if c, online := r.presence.Lookup(userID); online && !delivered[c] {
			delivered[c] = true
			r.emit(c, EventMessageEdited, res)
		}
	}
	if connID != "" {
		r.emit(connID, EventMessageEdited, res)
	}

	r.logger.Debug("message edited",
		slog.String("conn_id", connID),
		slog.String("user_id", editorID),
		slog.String("message_id", msg.ID))
	return res, nil
}

func editErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrTextNotFound
	case errors.Is(err, domain.ErrForbidden):
		return ErrTextUnauthorized
	}
	return ErrTextEditFailed
}

// OnTyping relays a typing indicator to an online receiver.
func (r *Relay) OnTyping(connID string, p TypingPayload) {
	r.relayTyping(connID, EventUserTyping, p)
}

// OnStopTyping relays the end of a typing indicator to an online receiver.
func (r *Relay) OnStopTyping(connID string, p TypingPayload) {
	r.relayTyping(connID, EventUserStoppedTyping, p)
}

func (r *Relay) relayTyping(connID, event string, p TypingPayload) {
	senderID, ok := r.presence.UserOf(connID)
	if !ok {
		return
	}
	receiverConn, online := r.presence.Lookup(p.ReceiverID)
	if !online {
		return
	}
	r.emit(receiverConn, event, TypingEvent{SenderID: senderID, ConversationID: p.ConversationID})
}

// OnDisconnect forgets connID. Presence of its user is dropped only if no
// newer connection has replaced it.
func (r *Relay) OnDisconnect(connID string) {
	if userID := r.presence.Disconnect(connID); userID != "" {
		r.logger.Info("user offline", slog.String("conn_id", connID), slog.String("user_id", userID))
		return
	}
	r.logger.Debug("connection closed", slog.String("conn_id", connID))
}

// actingUser resolves who connID acts as. An unbound connection falls back
// to the payload's claim only when AllowUnbound is set.
func (r *Relay) actingUser(connID, claimed string) (string, error) {
	if userID, ok := r.presence.UserOf(connID); ok {
		return userID, nil
	}
	if r.opts.AllowUnbound && claimed != "" {
		return claimed, nil
	}
	return "", domain.ErrUnboundConnection
}

func (r *Relay) emit(connID, event string, payload any) {
	if err := r.emitter.Emit(connID, event, payload); err != nil {
		r.logger.Warn("emit failed", slog.String("conn_id", connID), slog.String("event", event), slog.Any("error", err))
	}
}

// Reject reports a failure to connID only, for frames the transport could
// not decode.
func (r *Relay) Reject(connID, text string) {
	r.emitError(connID, text)
}

func (r *Relay) emitError(connID, text string) {
	r.emit(connID, EventMessageError, ErrorPayload{Error: text})
}
