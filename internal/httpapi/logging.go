package httpapi

import (
	"expvar"
	"log"
	"net/http"
	"strconv"
	"time"
)

var (
	requestsTotal    = expvar.NewInt("requests_total")
	requestsErrors   = expvar.NewInt("requests_errors_total")
	requestsByStatus = expvar.NewMap("requests_by_status")
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// LoggingMiddleware counts and logs every request. Health probes from the
// kiosk and monitor screens fire every few seconds, so successful /healthz
// hits are counted but not logged.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)
		requestsTotal.Add(1)
		requestsByStatus.Add(strconv.Itoa(writer.status), 1)
		if writer.status >= http.StatusBadRequest {
			requestsErrors.Add(1)
		}
		if r.URL.Path == "/healthz" && writer.status < http.StatusBadRequest {
			return
		}
		requestID := r.Header.Get("X-Request-ID")
		log.Printf("request method=%s path=%s status=%d bytes=%d duration_ms=%d request_id=%s", r.Method, r.URL.Path, writer.status, writer.bytes, duration.Milliseconds(), requestID)
	})
}
