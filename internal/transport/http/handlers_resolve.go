package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"annuaire/internal/resolve"
)

// ResolveService is the public read surface.
type ResolveService interface {
	Resolve(ctx context.Context, didURI string) (*resolve.Resolution, error)
}

// ResolveHandler serves public DID resolution. No actor context; this is
// the one unauthenticated surface.
type ResolveHandler struct {
	logger  *slog.Logger
	resolve ResolveService
}

func NewResolveHandler(service ResolveService, logger *slog.Logger) *ResolveHandler {
	return &ResolveHandler{logger: logger, resolve: service}
}

func (h *ResolveHandler) Register(r chi.Router) {
	// DID URIs contain colons, so the route takes the rest of the path.
	r.Get("/resolve/*", h.handleResolve)
}

func (h *ResolveHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	didURI := chi.URLParam(r, "*")

	resolution, err := h.resolve.Resolve(ctx, didURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}
