package maintenance

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ecom-server/internal/httpjson"
	"ecom-server/internal/observability"
)

// TokenPurger clears expired verification and reset tokens, and refresh
// tokens left behind on deactivated accounts.
type TokenPurger interface {
	PurgeExpiredCredentialTokens(ctx context.Context, now time.Time) (int64, error)
	PurgeDeactivatedRefreshTokens(ctx context.Context) (int64, error)
}

// CleanupHandler runs scheduled housekeeping. Reachable only with the
// cron secret; the route answers 404 when no secret is configured.
type CleanupHandler struct {
	purger     TokenPurger
	logger     *observability.Logger
	respond    *httpjson.Responder
	cronSecret string
}

func NewCleanupHandler(purger TokenPurger, logger *observability.Logger, respond *httpjson.Responder, cronSecret string) *CleanupHandler {
	return &CleanupHandler{
		purger:     purger,
		logger:     logger,
		respond:    respond,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		h.respond.Fail(w, http.StatusNotFound, "Not found")
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		h.respond.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	purged, err := h.purger.PurgeExpiredCredentialTokens(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("token_cleanup_failed", map[string]any{"error": err.Error()})
		h.respond.Fail(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}

	revoked, err := h.purger.PurgeDeactivatedRefreshTokens(r.Context())
	if err != nil {
		h.logger.Error("token_cleanup_failed", map[string]any{"error": err.Error()})
		h.respond.Fail(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}

	h.logger.Info("token_cleanup_completed", map[string]any{
		"purged_accounts":  purged,
		"revoked_sessions": revoked,
	})

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result": map[string]any{
			"purgedAccounts":  purged,
			"revokedSessions": revoked,
		},
	})
}
