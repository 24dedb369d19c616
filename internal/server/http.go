// Package server owns the small HTTP surface of the exporter:
// /metrics serving one aggregation pass, /healthz for probes.
package server

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	metricsPath = "/metrics"
	healthzPath = "/healthz"

	contentType = "text/plain; charset=utf-8"
)

// MetricsFunc produces the exposition text for one scrape.
// export.(*Aggregator).Aggregate satisfies it.
type MetricsFunc func(ctx context.Context) string

// NewMux returns a mux with /metrics bound to metrics and a trivial
// /healthz. The metrics body is served verbatim: the aggregation core
// already guarantees it is always valid text.
func NewMux(metrics MetricsFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(metricsPath, func(w http.ResponseWriter, r *http.Request) {
		body := metrics(r.Context())
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc(healthzPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

// New returns an http.Server bound to addr. Scrapes may legitimately
// take as long as the slowest script timeout, so no write timeout is
// set; idle and header timeouts keep lingering connections bounded.
func New(addr string, metrics MetricsFunc) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewMux(metrics),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
