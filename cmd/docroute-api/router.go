package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"docroute-api/internal/auth"
	"docroute-api/internal/config"
	"docroute-api/internal/http/docs"
	"docroute-api/internal/http/handler"
	"docroute-api/internal/http/middleware"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/ratelimit"
	"docroute-api/internal/repo"
	"docroute-api/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RouterDeps carries everything buildRouter needs. Nil handlers skip their
// routes, which keeps router-level tests free of real dependencies.
type RouterDeps struct {
	Cfg             *config.Config
	Log             *logger.Logger
	Resolver        *auth.KeyResolver
	S2SStore        *auth.S2STokenStore
	IdempotencyRepo *repo.IdempotencyRepo
	RateLimiter     *ratelimit.RedisRateLimiter
	EnableMetrics   bool
	Pool            *pgxpool.Pool // readiness check

	UserHandler         *handler.UserHandler
	DocumentHandler     *handler.DocumentHandler
	OfficeHandler       *handler.OfficeHandler
	NotificationHandler *handler.NotificationHandler
	AuditHandler        *handler.AuditHandler
	IdentityHandler     *handler.IdentityHandler
}

// buildRouter assembles the chi.Router with all middlewares and routes.
func buildRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogging(deps.Log))
	r.Use(middleware.Recovery(deps.Log))
	if deps.EnableMetrics {
		r.Use(telemetry.Instrument)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Pool == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready","note":"pool is nil"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Pool.Ping(ctx); err != nil {
			deps.Log.Error(ctx, "readiness check failed: database unavailable", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"error","message":"database unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if deps.EnableMetrics {
		r.Get("/metrics", metricsAuth(deps.Cfg.MetricsToken, telemetry.Handler()).ServeHTTP)
	}
	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	// Identity provisioning webhook. Authenticated (S2S) but not rate
	// limited: the caller is the identity provider, not an end user.
	if deps.IdentityHandler != nil {
		r.With(auth.AuthMiddleware(deps.Resolver, deps.S2SStore)).
			Post("/internal/identities", deps.IdentityHandler.Provision)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.Resolver, deps.S2SStore))
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimit(deps.RateLimiter, deps.Cfg.RateLimitPerActorPerMin))
		}

		if deps.UserHandler != nil {
			r.Get("/users", deps.UserHandler.List)
			r.Get("/users/me", deps.UserHandler.Me)
			r.Post("/users/{userId}/status", deps.UserHandler.UpdateStatus)
			r.With(middleware.Idempotency(deps.IdempotencyRepo)).Post("/roles:assign", deps.UserHandler.AssignRole)
			r.Post("/roles:ensure-root", deps.UserHandler.EnsureRootClaims)
		}

		if deps.DocumentHandler != nil {
			r.Route("/documents", func(r chi.Router) {
				r.Get("/", deps.DocumentHandler.List)
				r.With(middleware.Idempotency(deps.IdempotencyRepo)).Post("/", deps.DocumentHandler.Create)
				r.Get("/{docId}", deps.DocumentHandler.Get)
				r.With(middleware.Idempotency(deps.IdempotencyRepo)).Post("/{docId}:decide", deps.DocumentHandler.Decide)
			})
		}

		if deps.OfficeHandler != nil {
			r.Route("/offices", func(r chi.Router) {
				r.Get("/", deps.OfficeHandler.List)
				r.With(middleware.Idempotency(deps.IdempotencyRepo)).Post("/", deps.OfficeHandler.Create)
				r.Post("/{officeId}:archive", deps.OfficeHandler.Archive)
			})
		}

		if deps.NotificationHandler != nil {
			r.Get("/notifications", deps.NotificationHandler.List)
		}

		if deps.AuditHandler != nil {
			r.Get("/audit-logs", deps.AuditHandler.List)
		}
	})

	return r
}

// metricsAuth guards the metrics endpoint with a shared token. An empty
// token leaves the endpoint open, which is the expected setup when the
// scrape path is only reachable from inside the cluster.
func metricsAuth(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		presented := r.Header.Get("X-Metrics-Token")
		if presented == "" {
			presented = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
