package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hustlex/internal/domain"
	"hustlex/internal/relay"
	"hustlex/internal/service"
)

type messageEditRequest struct {
	Message string `json:"message"`
}

func handleListMessages(msgSvc *service.MessageService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUserID(r)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convID := chi.URLParam(r, "conversationID")
		if convID == "" || convID == "undefined" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}

		msgs, err := msgSvc.ListMessages(r.Context(), convID, userID, limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, msgSvc.ToResponses(r.Context(), msgs))
	}
}

// handleEditMessage runs the socket edit flow for the token's user, so
// online participants see the change live.
func handleEditMessage(rl *relay.Relay, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUserID(r)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req messageEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		res, err := rl.EditAsUser(r.Context(), userID, chi.URLParam(r, "messageID"), req.Message)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": relay.ErrTextNotFound})
		case errors.Is(err, domain.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": relay.ErrTextUnauthorized})
		case err != nil:
			writeError(w, logger, err)
		default:
			writeJSON(w, http.StatusOK, res)
		}
	}
}

func handleMarkConversationRead(msgSvc *service.MessageService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUserID(r)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		// conversationID is sometimes "undefined" due to a frontend bug
		convID := chi.URLParam(r, "conversationID")
		if convID == "" || convID == "undefined" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		n, err := msgSvc.MarkConversationRead(r.Context(), convID, userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "updated": n})
	}
}
