package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hustlex/internal/config"
	"hustlex/internal/domain"
	"hustlex/internal/presence"
	"hustlex/internal/relay"
	"hustlex/internal/security"
	"hustlex/internal/service"
)

// Deps carries everything the router serves.
type Deps struct {
	Logger        *slog.Logger
	Store         domain.Pinger
	Presence      *presence.Registry
	Tokens        *security.TokenService
	Messages      *service.MessageService
	Conversations *service.ConversationService
	Users         *service.UserService
	Relay         *relay.Relay
	Limiter       *LimiterStore // nil disables per-IP limiting
	WebSocket     http.Handler
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(cfg *config.Config, d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	started := time.Now()
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": cfg.AppName, "version": "1.0.0"})
	})

	health := handleHealth(d.Store, d.Presence, started)
	r.Get("/health", health)

	// WebSocket endpoint; upgraded connections must outlive the request timeout
	if d.WebSocket != nil {
		r.Handle("/ws", d.WebSocket)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if d.Limiter != nil {
			r.Use(RateLimitMiddleware(d.Limiter))
		}

		r.Get("/health", health)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Tokens))

			r.Route("/users", func(r chi.Router) {
				r.Get("/online", handleListOnlineUsers(d.Users))
				r.Get("/{userID}", handleGetUser(d.Users, d.Logger))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/conversations", handleListConversations(d.Conversations, d.Logger))
				r.Get("/conversation/{conversationID}", handleListMessages(d.Messages, d.Logger))
				r.Put("/conversation/{conversationID}/read", handleMarkConversationRead(d.Messages, d.Logger))
				r.Put("/{messageID}", handleEditMessage(d.Relay, d.Logger))
				r.Mount("/attachments", AttachmentRoutes(cfg, d.Logger))
			})
		})
	})

	return r
}

func handleHealth(store domain.Pinger, registry *presence.Registry, started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, database := "ok", "connected"
		code := http.StatusOK
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				status, database = "degraded", "disconnected"
				code = http.StatusServiceUnavailable
			}
		}
		body := map[string]any{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  database,
			"uptime":    time.Since(started).Seconds(),
		}
		if registry != nil {
			conns, users := registry.Stats()
			body["connections"] = conns
			body["onlineUsers"] = users
		}
		writeJSON(w, code, body)
	}
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logger.Error("request failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
