package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"hustlex/internal/service"
)

func handleListConversations(convSvc *service.ConversationService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUserID(r)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		convs, err := convSvc.ListForUser(r.Context(), userID, limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}
