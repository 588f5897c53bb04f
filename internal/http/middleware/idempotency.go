package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"docroute-api/internal/auth"
	"docroute-api/internal/http/httperr"
	"docroute-api/internal/observability/logger"
	"docroute-api/internal/repo"

	"go.uber.org/zap"
)

// Idempotency replays cached responses for repeated mutating requests that
// carry the same Idempotency-Key. Keys are scoped to the authenticated actor,
// so two actors reusing the same literal key never collide. Only 2xx
// responses are cached.
func Idempotency(idempotencyRepo *repo.IdempotencyRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if len(idempotencyKey) > 255 {
				log.Warn(ctx, "idempotency key too long", zap.Int("length", len(idempotencyKey)))
				httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "idempotency key must be 255 characters or less")
				return
			}

			authCtx, ok := auth.GetAuthContext(ctx)
			if !ok {
				log.Error(ctx, "auth context not found for idempotency")
				httperr.InternalError(w, ctx)
				return
			}

			keyHash := repo.HashKey(authCtx.ActorID, idempotencyKey)
			w.Header().Set("X-Idempotency-Key-Hash", keyHash)

			cached, err := idempotencyRepo.CheckKey(ctx, keyHash)
			if err != nil {
				log.Error(ctx, "failed to check idempotency key", zap.Error(err))
				httperr.InternalError(w, ctx)
				return
			}

			if cached != nil {
				log.Info(ctx, "returning cached response for idempotent request",
					zap.String("key_hash", keyHash),
					zap.Int("status", cached.Status),
				)

				for k, v := range cached.Headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("X-Idempotency-Replay", "true")

				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			var requestBody []byte
			if r.Body != nil {
				requestBody, err = io.ReadAll(r.Body)
				if err != nil {
					log.Error(ctx, "failed to read request body", zap.Error(err))
					httperr.InternalError(w, ctx)
					return
				}
				r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
				headers:        make(map[string]string),
			}

			next.ServeHTTP(recorder, r)

			if recorder.statusCode >= 200 && recorder.statusCode < 300 {
				for _, key := range []string{"Content-Type", "Location"} {
					if val := recorder.Header().Get(key); val != "" {
						recorder.headers[key] = val
					}
				}

				err = idempotencyRepo.StoreResult(
					ctx,
					keyHash,
					idempotencyKey,
					authCtx.ActorID,
					r.Method,
					r.URL.Path,
					json.RawMessage(requestBody),
					recorder.statusCode,
					json.RawMessage(recorder.body.Bytes()),
					recorder.headers,
				)
				if err != nil {
					// Caching failed; the request itself already succeeded.
					log.Error(ctx, "failed to store idempotency result", zap.Error(err))
				}
			}
		})
	}
}

// responseRecorder captures the response for storage.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	headers    map[string]string
	written    bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.written {
		rr.statusCode = code
		rr.written = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.written {
		rr.WriteHeader(http.StatusOK)
	}
	rr.body.Write(b)
	return rr.ResponseWriter.Write(b)
}
