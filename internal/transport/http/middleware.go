package httptransport

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	id "annuaire/pkg/domain"
	"annuaire/pkg/requestcontext"
)

// RequestTime pins one timestamp per request so every write within it
// carries the same time.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID assigns a request ID when the gateway did not send one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Actor resolves caller facts from gateway headers into the request
// context. Authentication itself happens upstream; this service trusts
// the facts it is handed and only enforces structural lifecycle guards.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := id.ParseUserID(r.Header.Get("X-Actor-ID"))
		if err != nil {
			writeError(w, err)
			return
		}
		actor := id.Actor{
			ID:        actorID,
			Email:     r.Header.Get("X-Actor-Email"),
			Name:      r.Header.Get("X-Actor-Name"),
			CanReview: r.Header.Get("X-Actor-Can-Review") == "true",
			Admin:     r.Header.Get("X-Actor-Admin") == "true",
		}
		ctx := requestcontext.WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
