package phi

import (
	"context"
	"regexp"
)

// Matcher is the capability every PHI detector implements. Pattern matchers
// are deterministic; a statistical matcher's confidence may vary across model
// versions. Scan must return quickly and respect ctx.
type Matcher interface {
	Name() string
	Scan(ctx context.Context, text string) ([]Finding, error)
}

// PatternMatcher detects one entity type with a compiled regular expression.
type PatternMatcher struct {
	name       string
	entity     EntityType
	re         *regexp.Regexp
	confidence float64
}

// NewPatternMatcher compiles pattern and returns a deterministic matcher for
// the given entity type.
func NewPatternMatcher(name string, entity EntityType, pattern string, confidence float64) (*PatternMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &PatternMatcher{name: name, entity: entity, re: re, confidence: confidence}, nil
}

// Name returns the matcher's identifier.
func (m *PatternMatcher) Name() string { return m.name }

// Scan reports every match of the pattern as a Finding.
func (m *PatternMatcher) Scan(_ context.Context, text string) ([]Finding, error) {
	locs := m.re.FindAllStringIndex(text, -1)
	if locs == nil {
		return nil, nil
	}
	findings := make([]Finding, 0, len(locs))
	for _, loc := range locs {
		findings = append(findings, Finding{
			Type:       m.entity,
			Start:      loc[0],
			End:        loc[1],
			Confidence: m.confidence,
			Text:       text[loc[0]:loc[1]],
		})
	}
	return findings, nil
}

// patternTable is the built-in healthcare pattern set. Labeled identifiers
// (MRN, DOB) score higher than shape-only patterns (diagnosis codes).
var patternTable = []struct {
	name       string
	entity     EntityType
	pattern    string
	confidence float64
}{
	{"ssn", TypeSSN, `\b\d{3}-\d{2}-\d{4}\b`, 0.85},
	{"mrn", TypeMRN, `\b(?i:MRN)[\s:#]*\d{5,}\b`, 0.95},
	{"dob", TypeDOB, `\b(?i:DOB|date\s*of\s*birth)[\s:]*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`, 0.95},
	{"phone", TypePhone, `\b\d{3}[-.)]\s*\d{3}[-.)]\s*\d{4}\b`, 0.80},
	{"email", TypeEmail, `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, 0.90},
	{"patient_name", TypePerson, `\b(?i:patient|pt)[\s:]+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+`, 0.70},
	{"address", TypeAddress, `\b\d{1,5}\s+[A-Z][a-z]+\s+(?:St|Ave|Blvd|Dr|Rd|Ln|Way|Court|Circle|Place)\b`, 0.70},
	{"icd10", TypeDiagnosisCode, `\b[A-TV-Z]\d{2}(?:\.\d{1,4})?\b`, 0.60},
	{"medication", TypeMedication,
		`\b(?:Metformin|Lisinopril|Atorvastatin|Amlodipine|Omeprazole|Metoprolol|Losartan|Gabapentin|` +
			`Hydrochlorothiazide|Sertraline|Amoxicillin|Levothyroxine|Prednisone|Insulin|Warfarin|` +
			`Ibuprofen|Acetaminophen|Aspirin)\b`, 0.40},
}

// DefaultPatternMatchers returns the built-in deterministic matcher set.
func DefaultPatternMatchers() []Matcher {
	matchers := make([]Matcher, 0, len(patternTable))
	for _, p := range patternTable {
		m, err := NewPatternMatcher(p.name, p.entity, p.pattern, p.confidence)
		if err != nil {
			// built-in patterns are compile-tested; a bad one is a programming error
			panic("phi: invalid built-in pattern " + p.name + ": " + err.Error())
		}
		matchers = append(matchers, m)
	}
	return matchers
}
