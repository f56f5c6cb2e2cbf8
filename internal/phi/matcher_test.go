package phi

import (
	"context"
	"testing"
)

func scanWith(t *testing.T, name, text string) []Finding {
	t.Helper()
	for _, m := range DefaultPatternMatchers() {
		if m.Name() != name {
			continue
		}
		findings, err := m.Scan(context.Background(), text)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		return findings
	}
	t.Fatalf("no matcher named %q", name)
	return nil
}

func TestPatternMatchers_Table(t *testing.T) {
	t.Parallel()

	cases := []struct {
		matcher  string
		text     string
		wantType EntityType
		wantText string
	}{
		{"ssn", "SSN: 423-91-8847 on file", TypeSSN, "423-91-8847"},
		{"mrn", "chart MRN: 847291034 reviewed", TypeMRN, "MRN: 847291034"},
		{"mrn", "mrn#84729 reviewed", TypeMRN, "mrn#84729"},
		{"dob", "DOB: 03/15/1958", TypeDOB, "DOB: 03/15/1958"},
		{"dob", "date of birth 11-22-85", TypeDOB, "date of birth 11-22-85"},
		{"phone", "call 555-867-5309 today", TypePhone, "555-867-5309"},
		{"email", "reach johndoe@email.com now", TypeEmail, "johndoe@email.com"},
		{"patient_name", "Patient John Michael Doe admitted", TypePerson, "Patient John Michael Doe"},
		{"address", "lives at 1423 Oak Dr since May", TypeAddress, "1423 Oak Dr"},
		{"icd10", "primary diagnosis E11.9 noted", TypeDiagnosisCode, "E11.9"},
		{"medication", "prescribed Metformin 1000mg BID", TypeMedication, "Metformin"},
	}

	for _, tc := range cases {
		t.Run(tc.matcher+"/"+tc.wantText, func(t *testing.T) {
			t.Parallel()

			findings := scanWith(t, tc.matcher, tc.text)
			if len(findings) == 0 {
				t.Fatalf("no findings in %q", tc.text)
			}
			f := findings[0]
			if f.Type != tc.wantType {
				t.Errorf("type = %s, want %s", f.Type, tc.wantType)
			}
			if f.Text != tc.wantText {
				t.Errorf("text = %q, want %q", f.Text, tc.wantText)
			}
			if f.Start < 0 || f.End > len(tc.text) || f.Start >= f.End {
				t.Errorf("offsets [%d,%d) out of range for len %d", f.Start, f.End, len(tc.text))
			}
			if tc.text[f.Start:f.End] != f.Text {
				t.Errorf("offsets do not address matched text: %q", tc.text[f.Start:f.End])
			}
		})
	}
}

func TestPatternMatchers_CleanText(t *testing.T) {
	t.Parallel()

	for _, m := range DefaultPatternMatchers() {
		findings, err := m.Scan(context.Background(), "How do I sort a list?")
		if err != nil {
			t.Fatalf("%s: %v", m.Name(), err)
		}
		if len(findings) != 0 {
			t.Errorf("%s found %d findings in clean text", m.Name(), len(findings))
		}
	}
}

func TestNewPatternMatcher_InvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewPatternMatcher("bad", TypeSSN, `(unclosed`, 0.5); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
