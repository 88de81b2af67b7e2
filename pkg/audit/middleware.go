package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/schoolops/assettrack/pkg/authn"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware records every mutating API call as an audit event after the
// handler completes. Writes are best-effort: an audit failure never fails
// the request it describes.
func Middleware(store *Store, cfg *Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !shouldAudit(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == "denied" && !cfg.LogDenied {
				return
			}

			ctx := r.Context()
			actor := "anonymous"
			role := ""
			if id := authn.FromContext(ctx); id != nil {
				actor = id.User
				role = string(id.Role)
			}

			event := &Event{
				ID:         uuid.New().String(),
				Actor:      actor,
				Role:       role,
				Action:     extractAction(r.Method, r.URL.Path),
				Resource:   extractResource(r.URL.Path),
				AssetTag:   extractAssetTag(r.URL.Path),
				Method:     r.Method,
				Path:       r.URL.Path,
				Outcome:    outcome,
				StatusCode: capture.statusCode,
				RequestID:  middleware.GetReqID(ctx),
				DurationMs: time.Since(startTime).Milliseconds(),
				CreatedAt:  startTime,
			}

			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event", "error", err, "path", r.URL.Path)
			}
		})
	}
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "denied"
	default:
		return "failure"
	}
}
