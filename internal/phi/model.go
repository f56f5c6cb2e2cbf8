package phi

// EntityType identifies a category of protected health information.
type EntityType string

const (
	TypePerson        EntityType = "PERSON"
	TypeSSN           EntityType = "US_SSN"
	TypePhone         EntityType = "PHONE_NUMBER"
	TypeEmail         EntityType = "EMAIL_ADDRESS"
	TypeDOB           EntityType = "DATE_OF_BIRTH"
	TypeMRN           EntityType = "MEDICAL_RECORD_NUMBER"
	TypeDiagnosisCode EntityType = "DIAGNOSIS_CODE"
	TypeMedication    EntityType = "MEDICATION"
	TypeAddress       EntityType = "ADDRESS"
)

// Finding is a raw candidate PHI occurrence reported by a single matcher.
// Offsets are byte offsets into the scanned text: 0 <= Start < End <= len(text).
type Finding struct {
	Type       EntityType `json:"type"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
	Text       string     `json:"text"`
}

// ResolvedSpan is a Finding that survived overlap resolution. The full set
// returned by Resolve is ordered by Start and pairwise non-overlapping.
type ResolvedSpan = Finding

// placeholders maps each entity type to its redaction placeholder. Placeholders
// contain no digits so a re-scan of redacted output cannot re-match the
// patterns that produced them.
var placeholders = map[EntityType]string{
	TypePerson:        "[REDACTED_NAME]",
	TypeSSN:           "[REDACTED_SSN]",
	TypePhone:         "[REDACTED_PHONE]",
	TypeEmail:         "[REDACTED_EMAIL]",
	TypeDOB:           "[REDACTED_DOB]",
	TypeMRN:           "[REDACTED_MRN]",
	TypeDiagnosisCode: "[REDACTED_DX]",
	TypeMedication:    "[REDACTED_MED]",
	TypeAddress:       "[REDACTED_ADDRESS]",
}

// defaultPlaceholder is used for entity types without a dedicated tag
// (e.g. types reported only by the statistical matcher).
const defaultPlaceholder = "[REDACTED]"

// Placeholder returns the redaction placeholder for an entity type.
func Placeholder(t EntityType) string {
	if p, ok := placeholders[t]; ok {
		return p
	}
	return defaultPlaceholder
}

// DistinctTypes returns the set of entity types present in findings,
// in first-seen order.
func DistinctTypes(findings []Finding) []EntityType {
	seen := make(map[EntityType]bool, len(findings))
	var out []EntityType
	for _, f := range findings {
		if !seen[f.Type] {
			seen[f.Type] = true
			out = append(out, f.Type)
		}
	}
	return out
}
