package guardapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/shadowguard/internal/guard"
)

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := guard.EventFilter{
		Severity: q.Get("severity"),
		Service:  q.Get("service"),
		Status:   q.Get("status"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	events, err := a.svc.ListEvents(r.Context(), f)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list events")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*guard.Event{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("shadowguard.event.id", id))

	ev, ok, err := a.svc.GetEvent(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get event", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleUpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Status guard.EventStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if !guard.ValidEventStatus(body.Status) {
		http.Error(w, `{"error":"unknown status"}`, http.StatusBadRequest)
		return
	}

	ev, ok, err := a.svc.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to update event status", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, ev)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.svc.Stats())
}

func (a *API) handleListCalls(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	calls, err := a.svc.ListCalls(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list call records")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if calls == nil {
		calls = []*guard.CallRecord{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

func (a *API) handleCallStats(w http.ResponseWriter, r *http.Request) {
	cs, err := a.svc.CallStatsSnapshot(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to summarize call records")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, cs)
}
