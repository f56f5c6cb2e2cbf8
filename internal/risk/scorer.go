package risk

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/shadowguard/internal/phi"
)

// Contribution is one named addend of a risk score.
type Contribution struct {
	Label string `json:"label"`
	Delta int    `json:"delta"`
}

// Breakdown is the ordered list of contributions whose clamped sum is the score.
type Breakdown []Contribution

// Weights is the configurable contribution table. All values are points.
type Weights struct {
	UnknownService   int // destination not on the allow-list
	PerEntityType    int // each distinct detected entity type
	EntityTypeCap    int // ceiling on the total entity-type contribution
	KeywordFlat      int // flat boost when the keyword count meets the threshold
	KeywordThreshold int // minimum distinct keywords to trigger the boost
	Method           int // payload-submitting HTTP method
}

// DefaultWeights are the stock contribution values.
var DefaultWeights = Weights{
	UnknownService:   15,
	PerEntityType:    15,
	EntityTypeCap:    45,
	KeywordFlat:      15,
	KeywordThreshold: 3,
	Method:           5,
}

// Validate checks the weight table for sanity.
func (w Weights) Validate() error {
	if w.UnknownService < 0 || w.PerEntityType < 0 || w.KeywordFlat < 0 || w.Method < 0 {
		return fmt.Errorf("risk weights must be non-negative: %+v", w)
	}
	if w.EntityTypeCap < w.PerEntityType {
		return fmt.Errorf("entity type cap %d below per-type weight %d", w.EntityTypeCap, w.PerEntityType)
	}
	if w.KeywordThreshold < 1 {
		return fmt.Errorf("keyword threshold %d must be at least 1", w.KeywordThreshold)
	}
	return nil
}

// Signals are the contextual inputs to a score, alongside the resolved
// entity types.
type Signals struct {
	Service      string
	Method       string
	Types        []phi.EntityType
	KeywordCount int
}

// Scorer computes a deterministic additive risk score from a weight table and
// a destination allow-list.
type Scorer struct {
	weights Weights
	allowed map[string]bool
}

// NewScorer builds a Scorer. Allow-list entries are matched case-insensitively.
func NewScorer(w Weights, allowList []string) *Scorer {
	allowed := make(map[string]bool, len(allowList))
	for _, s := range allowList {
		if s = strings.TrimSpace(s); s != "" {
			allowed[strings.ToLower(s)] = true
		}
	}
	return &Scorer{weights: w, allowed: allowed}
}

// submittingMethods carry a request payload toward the destination.
var submittingMethods = map[string]bool{"POST": true, "PUT": true, "PATCH": true}

// Score sums the configured contributions and clamps to [0,100]. The returned
// breakdown lists every non-zero contribution in evaluation order.
func (s *Scorer) Score(sig Signals) (int, Breakdown) {
	var bd Breakdown
	total := 0

	if !s.allowed[strings.ToLower(sig.Service)] {
		bd = append(bd, Contribution{
			Label: fmt.Sprintf("unauthorized service: %s", sig.Service),
			Delta: s.weights.UnknownService,
		})
		total += s.weights.UnknownService
	}

	typeBoost := 0
	for _, t := range sig.Types {
		if typeBoost+s.weights.PerEntityType > s.weights.EntityTypeCap {
			break
		}
		typeBoost += s.weights.PerEntityType
		bd = append(bd, Contribution{
			Label: fmt.Sprintf("entity type: %s", t),
			Delta: s.weights.PerEntityType,
		})
	}
	total += typeBoost

	if sig.KeywordCount >= s.weights.KeywordThreshold {
		bd = append(bd, Contribution{
			Label: fmt.Sprintf("medical keywords: %d found", sig.KeywordCount),
			Delta: s.weights.KeywordFlat,
		})
		total += s.weights.KeywordFlat
	}

	if submittingMethods[strings.ToUpper(sig.Method)] {
		bd = append(bd, Contribution{
			Label: fmt.Sprintf("data submission method: %s", strings.ToUpper(sig.Method)),
			Delta: s.weights.Method,
		})
		total += s.weights.Method
	}

	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total, bd
}
