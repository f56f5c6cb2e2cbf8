// Package guardapi exposes the inspection pipeline over HTTP: the scan
// endpoint used by interceptors, the event and call audit surface, and the
// live event stream.
package guardapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/shadowguard/internal/guard"
)

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    *guard.Service
}

// New creates a new API handler.
func New(logger log.Logger, svc *guard.Service) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("guard service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router. auth wraps the
// operator endpoints; nil means no authentication.
func (a *API) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scan", a.handleScan)
		r.Get("/events", a.handleListEvents)
		r.Get("/events/{id}", a.handleGetEvent)
		r.With(auth).Patch("/events/{id}/status", a.handleUpdateEventStatus)
		r.Get("/stats", a.handleStats)
		r.Get("/calls", a.handleListCalls)
		r.Get("/calls/stats", a.handleCallStats)
		r.Get("/stream", a.handleStream)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
