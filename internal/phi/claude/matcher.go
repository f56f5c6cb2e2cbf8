// Package claude provides a statistical PHI matcher backed by the Anthropic
// API. It complements the deterministic pattern matchers: the model is asked
// for a JSON entity list, which is mapped back onto byte offsets in the
// scanned text. Its confidence may vary across model versions, so it sits
// outside the pipeline's determinism guarantees.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/shadowguard/internal/phi"
)

const (
	responseTokens = 1024

	// statConfidence is assigned to every model-reported entity; the API does
	// not return per-entity scores.
	statConfidence = 0.90
)

const systemPrompt = `You are a HIPAA PHI detection system. Given text, identify ALL Protected Health Information entities.
Return ONLY a JSON array of objects with "entity_type" and "text" fields. No explanation, no markdown.

Entity types: PERSON, US_SSN, PHONE_NUMBER, EMAIL_ADDRESS, DATE_OF_BIRTH, MEDICAL_RECORD_NUMBER, DIAGNOSIS_CODE, MEDICATION, ADDRESS

If no PHI is found, return: []`

// Matcher implements phi.Matcher using the Anthropic messages API.
type Matcher struct {
	client anthropic.Client
	model  string
}

// New creates a Claude-backed matcher with the given API key and model name.
func New(apiKey, model string) *Matcher {
	return &Matcher{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Name returns the matcher's identifier.
func (m *Matcher) Name() string { return "claude" }

// entity is the wire shape the model is prompted to return.
type entity struct {
	EntityType string `json:"entity_type"`
	Text       string `json:"text"`
}

// Scan asks the model for PHI entities in text and maps each reported entity
// string back to its first occurrence. Entities whose text does not appear in
// the input are discarded.
func (m *Matcher) Scan(ctx context.Context, text string) ([]phi.Finding, error) {
	msg, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: responseTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	var raw strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}

	entities, err := parseEntities(raw.String())
	if err != nil {
		return nil, err
	}
	return mapToFindings(text, entities), nil
}

// parseEntities decodes the model's JSON array, tolerating markdown fencing.
func parseEntities(raw string) ([]entity, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		var kept []string
		for _, line := range strings.Split(cleaned, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		cleaned = strings.Join(kept, "\n")
	}

	var entities []entity
	if err := json.Unmarshal([]byte(cleaned), &entities); err != nil {
		return nil, fmt.Errorf("claude: invalid entity list: %w", err)
	}
	return entities, nil
}

func mapToFindings(text string, entities []entity) []phi.Finding {
	var findings []phi.Finding
	for _, ent := range entities {
		if ent.Text == "" {
			continue
		}
		start := strings.Index(text, ent.Text)
		if start < 0 {
			continue
		}
		findings = append(findings, phi.Finding{
			Type:       phi.EntityType(ent.EntityType),
			Start:      start,
			End:        start + len(ent.Text),
			Confidence: statConfidence,
			Text:       ent.Text,
		})
	}
	return findings
}
