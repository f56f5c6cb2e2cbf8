package risk

import "strings"

// medicalKeywords are context terms whose presence suggests clinical content
// even when no identifier patterns match.
var medicalKeywords = []string{
	"patient",
	"diagnosis",
	"prescribed",
	"medication",
	"discharge",
	"admission",
	"lab results",
	"radiology",
	"mri",
	"ct scan",
	"blood pressure",
	"heart rate",
	"allergies",
	"surgery",
	"prognosis",
	"treatment plan",
	"medical record",
	"clinical notes",
	"hipaa",
	"phi",
	"ehr",
	"icd",
	"cpt",
	"vital signs",
}

// CountKeywords returns how many distinct medical keywords appear in text,
// case-insensitively.
func CountKeywords(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
