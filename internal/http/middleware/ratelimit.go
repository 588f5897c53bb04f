package middleware

import (
	"fmt"
	"net/http"
	"time"

	"docroute-api/internal/auth"
	"docroute-api/internal/http/httperr"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/ratelimit"

	"go.uber.org/zap"
)

// RateLimit enforces a per-actor request limit over a one-minute window.
// Runs after authentication, since the actor identity is the limit key.
func RateLimit(limiter *ratelimit.RedisRateLimiter, limitPerMin int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			authCtx, ok := auth.GetAuthContext(ctx)
			if !ok {
				log.Error(ctx, "auth context not found for rate limiting")
				httperr.InternalError(w, ctx)
				return
			}

			allowed, remaining, err := limiter.AllowRequest(ctx, authCtx.ActorID, limitPerMin, 60)
			if err != nil {
				// Redis being down must not take the API with it.
				log.Error(ctx, "rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limitPerMin))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(60*time.Second).Unix()))

			if !allowed {
				log.Warn(ctx, "rate limit exceeded",
					zap.String("actor_id", authCtx.ActorID),
					zap.Int("limit", limitPerMin),
				)

				w.Header().Set("Retry-After", "60")
				httperr.TooManyRequests429(w, ctx, "rate limit exceeded, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
