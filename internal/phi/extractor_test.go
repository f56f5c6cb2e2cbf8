package phi

import (
	"context"
	"errors"
	"testing"
)

// failingMatcher always errors, simulating an unavailable statistical engine.
type failingMatcher struct{}

func (failingMatcher) Name() string { return "failing" }
func (failingMatcher) Scan(context.Context, string) ([]Finding, error) {
	return nil, errors.New("engine unavailable")
}

// badOffsetMatcher reports findings outside the text bounds.
type badOffsetMatcher struct{}

func (badOffsetMatcher) Name() string { return "bad_offsets" }
func (badOffsetMatcher) Scan(_ context.Context, text string) ([]Finding, error) {
	return []Finding{
		{Type: TypePerson, Start: -1, End: 4, Confidence: 0.9},
		{Type: TypePerson, Start: 2, End: len(text) + 10, Confidence: 0.9},
		{Type: TypePerson, Start: 5, End: 5, Confidence: 0.9},
	}, nil
}

func TestExtractor_Scan(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultPatternMatchers(), nil)
	text := "Patient Jane Smith, MRN: 993847, SSN: 291-55-8834"
	findings := e.Scan(context.Background(), text)

	types := map[EntityType]bool{}
	for _, f := range findings {
		types[f.Type] = true
	}
	for _, want := range []EntityType{TypePerson, TypeMRN, TypeSSN} {
		if !types[want] {
			t.Errorf("missing %s in findings: %v", want, findings)
		}
	}
}

func TestExtractor_BlankInput(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultPatternMatchers(), nil)
	if got := e.Scan(context.Background(), "   \n\t"); got != nil {
		t.Errorf("blank input yielded findings: %v", got)
	}
}

func TestExtractor_FailOpenOnMatcherError(t *testing.T) {
	t.Parallel()

	matchers := append([]Matcher{failingMatcher{}}, DefaultPatternMatchers()...)
	e := NewExtractor(matchers, nil)

	findings := e.Scan(context.Background(), "SSN: 423-91-8847")
	if len(findings) == 0 {
		t.Fatal("failing matcher aborted the scan; expected remaining matchers to run")
	}
	if findings[0].Type != TypeSSN {
		t.Errorf("type = %s, want %s", findings[0].Type, TypeSSN)
	}
}

func TestExtractor_DropsInvalidOffsets(t *testing.T) {
	t.Parallel()

	e := NewExtractor([]Matcher{badOffsetMatcher{}}, nil)
	if got := e.Scan(context.Background(), "some text"); len(got) != 0 {
		t.Errorf("invalid-offset findings survived: %v", got)
	}
}
