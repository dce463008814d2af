// Package httptransport composes the HTTP API. Route groups register
// themselves with their own middleware chains; the root router only adds the
// operational endpoints.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar mounts one route group on the root router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires all endpoints plus health and metrics.
func NewRouter(registrars ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, registrar := range registrars {
		registrar.Register(r)
	}
	return r
}
