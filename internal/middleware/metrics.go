package middleware

import (
	"net/http"
	"strconv"
	"time"

	"strava-home-bridge/internal/metrics"
)

// statusRecorder captures the status code written to the response so the
// middleware can label metrics with it after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

// Instrument wraps a handler with request count, latency, and in-flight
// gauges, labelled by the given endpoint name.
func Instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight := metrics.HTTPRequestsInFlight.WithLabelValues(endpoint)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			// Handler never wrote anything; net/http sends 200.
			status = http.StatusOK
		}
		label := strconv.Itoa(status)
		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, label).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(endpoint, label).Observe(time.Since(start).Seconds())
	})
}

// WrapHandler instruments a HandlerFunc.
func WrapHandler(endpoint string, handler http.HandlerFunc) http.Handler {
	return Instrument(endpoint, handler)
}
