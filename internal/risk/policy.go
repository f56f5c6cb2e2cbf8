package risk

import (
	"fmt"

	"github.com/linnemanlabs/shadowguard/internal/phi"
)

// Action is the decision taken on a scanned payload.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionRedact Action = "redact"
	ActionBlock  Action = "block"
)

// Policy maps a score and detected entity types to an action. It is a pure
// function of its configuration: identical inputs always yield the same
// action.
type Policy struct {
	redactThreshold int
	blockThreshold  int
	forceBlock      map[phi.EntityType]bool
}

// NewPolicy builds a Policy. forceBlock types trigger a block regardless of
// score.
func NewPolicy(redactThreshold, blockThreshold int, forceBlock []phi.EntityType) (*Policy, error) {
	if redactThreshold < 0 || redactThreshold > 100 {
		return nil, fmt.Errorf("redact threshold %d out of range [0,100]", redactThreshold)
	}
	if blockThreshold < 0 || blockThreshold > 100 {
		return nil, fmt.Errorf("block threshold %d out of range [0,100]", blockThreshold)
	}
	if blockThreshold < redactThreshold {
		return nil, fmt.Errorf("block threshold %d below redact threshold %d", blockThreshold, redactThreshold)
	}
	fb := make(map[phi.EntityType]bool, len(forceBlock))
	for _, t := range forceBlock {
		fb[t] = true
	}
	return &Policy{
		redactThreshold: redactThreshold,
		blockThreshold:  blockThreshold,
		forceBlock:      fb,
	}, nil
}

// Decide returns the action for a score and the distinct detected types.
func (p *Policy) Decide(score int, types []phi.EntityType) Action {
	for _, t := range types {
		if p.forceBlock[t] {
			return ActionBlock
		}
	}
	switch {
	case score >= p.blockThreshold:
		return ActionBlock
	case score >= p.redactThreshold:
		return ActionRedact
	default:
		return ActionAllow
	}
}
