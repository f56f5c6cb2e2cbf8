package guardapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/shadowguard/internal/guard"
	"github.com/linnemanlabs/shadowguard/internal/phi"
	"github.com/linnemanlabs/shadowguard/internal/risk"
)

const refusalMessage = "This request was blocked because it appears to contain protected health information."

type scanResponse struct {
	*guard.Decision
	Refusal *refusal `json:"refusal,omitempty"`
}

// refusal is the structured explanation returned in place of forwarded
// content when a payload is blocked.
type refusal struct {
	Message string           `json:"message"`
	Code    string           `json:"code"`
	Score   int              `json:"score"`
	Types   []phi.EntityType `json:"types"`
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	var req guard.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}
	if req.Service == "" {
		http.Error(w, `{"error":"service is required"}`, http.StatusBadRequest)
		return
	}

	dec := a.svc.Inspect(r.Context(), &req)

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("shadowguard.event.id", dec.EventID),
		attribute.String("shadowguard.scan.action", string(dec.Action)),
		attribute.Int("shadowguard.scan.score", dec.Score),
	)

	resp := scanResponse{Decision: dec}
	if dec.Action == risk.ActionBlock {
		types := make([]phi.EntityType, 0, len(dec.Findings))
		seen := make(map[phi.EntityType]bool)
		for _, f := range dec.Findings {
			if !seen[f.Type] {
				seen[f.Type] = true
				types = append(types, f.Type)
			}
		}
		resp.Refusal = &refusal{
			Message: refusalMessage,
			Code:    "phi_blocked",
			Score:   dec.Score,
			Types:   types,
		}
	}

	a.writeJSON(w, http.StatusOK, resp)
}
