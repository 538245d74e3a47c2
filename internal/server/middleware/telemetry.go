package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"passkeyd/internal/events"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// statusRecorder captures the response status code for the telemetry event.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Telemetry wraps next, stores the client IP in the request context, and emits
// an http_request event after each request. Best-effort: emit failures are
// logged and never affect the response. If emitter is nil only the client IP
// is recorded.
func Telemetry(emitter events.EventEmitter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := WithClientIP(r.Context(), RequestIP(r))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if emitter == nil {
			return
		}
		meta := httpRequestMetadata{
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: rec.status,
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		}
		metaJSON, _ := json.Marshal(meta)
		userID, _ := GetUserID(ctx)
		events.EmitAsync(emitter, ctx, events.New("http_request", userID, string(metaJSON)))
	})
}
