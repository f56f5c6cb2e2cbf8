package phi

import "sort"

// Resolve merges possibly-overlapping findings from multiple matchers into an
// ordered, pairwise non-overlapping set. Findings are sorted by start
// ascending, ties broken by longer span then higher confidence, and selected
// greedily: a finding is kept only if it starts at or after the end of the
// last kept finding.
func Resolve(findings []Finding) []ResolvedSpan {
	if len(findings) == 0 {
		return nil
	}

	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End // longer span first
		}
		return a.Confidence > b.Confidence
	})

	resolved := make([]ResolvedSpan, 0, len(sorted))
	lastEnd := -1
	for _, f := range sorted {
		if f.Start < lastEnd {
			continue
		}
		resolved = append(resolved, f)
		lastEnd = f.End
	}
	return resolved
}
