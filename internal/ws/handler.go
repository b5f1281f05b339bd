package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"hustlex/internal/relay"
	"hustlex/internal/security"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

// HandlerOptions tunes the /ws endpoint.
type HandlerOptions struct {
	AllowedOrigins []string
	// RequireToken refuses the upgrade when no bearer token is presented.
	// Without it anonymous clients connect and announce themselves via join.
	RequireToken    bool
	MaxMessageBytes int64
	EventsPerMinute int
	Logger          *slog.Logger
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}
	if _, wildcard := allowed["*"]; wildcard {
		return func(r *http.Request) bool {
			return true
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractTokenFromWSRequest looks for a bearer token in the Authorization
// header, the Sec-WebSocket-Protocol header ("bearer, <token>") and the
// token query parameter, in that order. It returns "" when there is none.
func extractTokenFromWSRequest(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1]
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func authenticate(r *http.Request, tokens *security.TokenService, required bool) (string, error) {
	tokenStr := extractTokenFromWSRequest(r)
	if tokenStr == "" {
		if required {
			return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
		}
		return "", nil
	}
	userID, err := tokens.UserID(tokenStr)
	if err != nil {
		return "", wsAuthError{status: http.StatusUnauthorized, msg: "invalid token"}
	}
	return userID, nil
}

// MakeHandler returns an HTTP handler for the /ws endpoint. Each connection
// gets an id, is registered with the hub and the relay, and then has its
// frames dispatched until it closes:
//   - join                 -> bind a user to the connection
//   - sendMessage          -> persist, newMessage to receiver, messageSent to caller
//   - editMessage          -> authorize by bound user, messageEdited fan-out
//   - typing / stopTyping  -> forward to the receiver if online
func MakeHandler(hub *Hub, rl *relay.Relay, tokens *security.TokenService, opts HandlerOptions) http.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkOrigin := makeCheckOrigin(opts.AllowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		userID, err := authenticate(r, tokens, opts.RequireToken)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if opts.MaxMessageBytes > 0 {
			conn.SetReadLimit(opts.MaxMessageBytes)
		}

		connID := uuid.NewString()
		hub.Register(connID, conn)
		rl.OnConnect(connID, userID)
		defer func() {
			hub.Unregister(connID)
			rl.OnDisconnect(connID)
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var limiter *rate.Limiter
		if opts.EventsPerMinute > 0 {
			limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.EventsPerMinute)), opts.EventsPerMinute)
		}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					logger.Debug("ws read", slog.String("conn_id", connID), slog.Any("error", err))
				}
				break
			}
			var frame struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(raw, &frame); err != nil {
				// A bad frame is the client's problem, not a disconnect.
				logger.Warn("ws frame", slog.String("conn_id", connID), slog.Any("error", err))
				rl.Reject(connID, relay.ErrTextInvalidPayload)
				continue
			}
			if limiter != nil && !limiter.Allow() {
				logger.Warn("ws event rate limit exceeded", slog.String("conn_id", connID), slog.String("event", frame.Event))
				_ = hub.Emit(connID, relay.EventMessageError, relay.ErrorPayload{Error: relay.ErrTextRateLimited})
				continue
			}
			dispatch(ctx, rl, logger, connID, frame.Event, frame.Data)
		}
	}
}

func dispatch(ctx context.Context, rl *relay.Relay, logger *slog.Logger, connID, event string, data json.RawMessage) {
	switch event {

	case relay.EventJoin:
		userID, err := parseJoin(data)
		if err != nil {
			logger.Debug("ws join payload", slog.String("conn_id", connID), slog.Any("error", err))
		}
		rl.OnJoin(connID, userID)

	case relay.EventSendMessage:
		var p relay.SendPayload
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("ws sendMessage payload", slog.String("conn_id", connID), slog.Any("error", err))
			rl.Reject(connID, relay.ErrTextSendFailed)
			return
		}
		rl.OnSendMessage(ctx, connID, p)

	case relay.EventEditMessage:
		var p relay.EditPayload
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("ws editMessage payload", slog.String("conn_id", connID), slog.Any("error", err))
			rl.Reject(connID, relay.ErrTextEditFailed)
			return
		}
		rl.OnEditMessage(ctx, connID, p)

	case relay.EventTyping, relay.EventStopTyping:
		var p relay.TypingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if event == relay.EventTyping {
			rl.OnTyping(connID, p)
		} else {
			rl.OnStopTyping(connID, p)
		}

	default:
		logger.Debug("ws unknown event", slog.String("conn_id", connID), slog.String("event", event))
	}
}

// parseJoin accepts the user id as a bare JSON string or as {"userId": ...}.
func parseJoin(data json.RawMessage) (string, error) {
	var userID string
	if err := json.Unmarshal(data, &userID); err == nil {
		return strings.TrimSpace(userID), nil
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	return strings.TrimSpace(obj.UserID), nil
}
