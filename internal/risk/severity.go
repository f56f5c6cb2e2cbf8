package risk

import "fmt"

// Severity is the discrete exposure tier derived from a risk score.
type Severity string

const (
	SeverityClean    Severity = "clean"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Boundaries holds the lowest score belonging to each tier. Scores below Low
// are clean. Boundaries must be strictly ascending.
type Boundaries struct {
	Low      int
	Medium   int
	High     int
	Critical int
}

// DefaultBoundaries are the stock tier cutoffs.
var DefaultBoundaries = Boundaries{Low: 1, Medium: 40, High: 65, Critical: 85}

// Validate checks that the boundaries are in range and strictly ascending.
func (b Boundaries) Validate() error {
	if b.Low < 1 || b.Critical > 100 {
		return fmt.Errorf("severity boundaries %+v out of range [1,100]", b)
	}
	if !(b.Low < b.Medium && b.Medium < b.High && b.High < b.Critical) {
		return fmt.Errorf("severity boundaries %+v must be strictly ascending", b)
	}
	return nil
}

// Tier maps a score to its severity. Monotonic in score.
func (b Boundaries) Tier(score int) Severity {
	switch {
	case score >= b.Critical:
		return SeverityCritical
	case score >= b.High:
		return SeverityHigh
	case score >= b.Medium:
		return SeverityMedium
	case score >= b.Low:
		return SeverityLow
	default:
		return SeverityClean
	}
}
