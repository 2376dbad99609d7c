package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ledgerline/ledgerline-backend/api/responses"
	pkgerrors "github.com/ledgerline/ledgerline-backend/pkg/errors"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
)

// PurchaseRateLimit caps purchase attempts per authenticated user per minute.
// Anonymous requests fall back to the client IP. A non-positive limit disables it.
func PurchaseRateLimit(limit int, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		time.Minute,
		httprate.WithKeyFuncs(keyByActor),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if logg != nil {
				ctx := logg.WithFields(r.Context(), map[string]any{
					"limit":          limit,
					"window_seconds": 60,
				})
				logg.Warn(ctx, "purchase.rate_limit.blocked")
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		}),
	)
}

func keyByActor(r *http.Request) (string, error) {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
