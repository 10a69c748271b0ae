package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tripmate-app/tripmate/internal/models"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// webhookHandler receives Telegram updates. Once the secret checks out it
// always acknowledges with 200: a non-2xx makes Telegram redeliver the same
// update, and a malformed or failing update would never get better.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookHandler: processing webhook request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	got := r.Header.Get(secretTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) != 1 {
		slog.Warn("Server.webhookHandler: webhook secret mismatch")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Unauthorized"))
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode update", "error", err)
		writeJSONResponse(w, http.StatusOK, models.OkWithMessage("ignored"))
		return
	}

	s.dispatcher.Dispatch(r.Context(), update)
	writeJSONResponse(w, http.StatusOK, models.OkWithMessage("ok"))
}

// healthHandler reports liveness plus build and backend identity.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Ok(map[string]interface{}{
		"version": s.opts.Version,
		"store":   s.opts.StoreDriver,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	}))
}
