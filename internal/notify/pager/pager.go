// Package pager places escalation voice calls through a Vapi-style calling
// provider.
package pager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/shadowguard/internal/dispatch"
)

const httpTimeout = 10 * time.Second

// Config holds the provider settings for placing calls.
type Config struct {
	BaseURL       string
	APIKey        string
	AssistantID   string
	PhoneNumberID string
	ToNumber      string
	Department    string
}

// Client submits escalation pages as outbound voice calls. Implements
// dispatch.Pager.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a new pager client.
func New(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: httpTimeout},
	}
}

type callResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Page places one voice call carrying the escalation context. The assistant
// receives the context as template variables.
func (c *Client) Page(ctx context.Context, req *dispatch.PageRequest) (*dispatch.PageAck, error) {
	payload := map[string]any{
		"assistantId":   c.cfg.AssistantID,
		"phoneNumberId": c.cfg.PhoneNumberID,
		"customer": map[string]any{
			"number": c.cfg.ToNumber,
		},
		"assistantOverrides": map[string]any{
			"variableValues": map[string]any{
				"service":      req.Service,
				"phi_types":    strings.Join(req.PHITypes, ", "),
				"risk_score":   req.RiskScore,
				"action_taken": req.ActionTaken,
				"timestamp":    req.Timestamp.UTC().Format(time.RFC3339),
				"department":   c.cfg.Department,
				"source":       req.SourceID,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pager: marshal call: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pager: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq) //nolint:gosec // G704: BaseURL is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("pager: post call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pager: provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	var cr callResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("pager: decode response: %w", err)
	}

	return &dispatch.PageAck{CallID: cr.ID, Status: cr.Status}, nil
}
