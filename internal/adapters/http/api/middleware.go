package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/assay/pkg/metrics"
)

// MetricsMiddleware records request count and latency per endpoint. Failed
// requests are also counted under the error code the handler reported.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Milliseconds()))

		if rec.statusCode < http.StatusBadRequest {
			return
		}
		code := rec.errorCode
		if code == "" {
			code = fallbackCode(rec.statusCode)
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		metrics.RecordErrorByType(code, severity(rec.statusCode))
	}
}

// fallbackCode labels errors written without writeError, such as the mux's
// own 404 and 405 responses.
func fallbackCode(status int) string {
	if status >= http.StatusInternalServerError {
		return codeInternal
	}
	return "client_error"
}

// severity ranks failures: server faults are high, load shedding and state
// conflicts medium, everything else the caller's mistake.
func severity(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "high"
	case status == http.StatusTooManyRequests, status == http.StatusConflict:
		return "medium"
	default:
		return "low"
	}
}

// errorLabeler is implemented by writers that want the classified error code.
type errorLabeler interface {
	labelError(code string)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	errorCode  string
}

func (rw *statusRecorder) labelError(code string) { rw.errorCode = code }

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
