package phi

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// Extractor aggregates findings from a set of independent matchers. A single
// matcher failure degrades detection to the remaining matchers; it never
// aborts the scan.
type Extractor struct {
	matchers []Matcher
	logger   log.Logger
}

// NewExtractor creates an Extractor over the given matchers.
func NewExtractor(matchers []Matcher, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Extractor{matchers: matchers, logger: logger}
}

// Scan runs every registered matcher over text and concatenates their
// findings. Findings with offsets outside the text are dropped. Blank input
// yields zero findings.
func (e *Extractor) Scan(ctx context.Context, text string) []Finding {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var all []Finding
	for _, m := range e.matchers {
		findings, err := m.Scan(ctx, text)
		if err != nil {
			// fail-open: reduced detection, never none
			e.logger.Warn(ctx, "matcher unavailable, continuing with remaining matchers",
				"matcher", m.Name(), "error", err)
			continue
		}
		for _, f := range findings {
			if f.Start < 0 || f.End > len(text) || f.Start >= f.End {
				continue
			}
			all = append(all, f)
		}
	}
	return all
}
