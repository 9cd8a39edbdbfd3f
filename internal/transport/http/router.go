// Package httptransport is the thin REST layer. Handlers delegate to the
// domain services; authentication and org membership are resolved
// upstream and arrive as headers.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrable is anything that mounts routes on a chi router.
type Registrable interface {
	Register(r chi.Router)
}

// NewRouter wires the public resolution surface, the health and metrics
// endpoints, and the actor-scoped API.
func NewRouter(resolveHandler Registrable, apiHandlers ...Registrable) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestTime)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if resolveHandler != nil {
		resolveHandler.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(Actor)
		for _, h := range apiHandlers {
			h.Register(r)
		}
	})
	return r
}
