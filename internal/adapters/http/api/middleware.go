package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/duelarena/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error codes for endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Microseconds())/1000)

		if rec.status >= http.StatusBadRequest {
			metrics.RecordError("http", rec.errorCode())
		}
	}
}

// statusRecorder remembers the status and, when writeError was used, the
// wire error code of the response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) errorCode() string {
	if r.code != "" {
		return r.code
	}
	if r.status >= http.StatusInternalServerError {
		return "server_error"
	}
	if r.status == http.StatusNotFound {
		return "not_found"
	}
	return "client_error"
}
