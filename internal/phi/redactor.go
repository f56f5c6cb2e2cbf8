package phi

import "strings"

// Redact replaces each resolved span in text with its type-tagged placeholder.
// Spans carry offsets into the original text and must be start-ordered and
// non-overlapping (the Resolve contract); replacement walks the original
// string once so earlier replacements never shift later offsets. The result
// of a detect→redact cycle is stable: re-scanning the output does not
// re-detect the redacted entity types at the placeholder locations.
func Redact(text string, spans []ResolvedSpan) string {
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, sp := range spans {
		if sp.Start < prev || sp.End > len(text) {
			continue
		}
		b.WriteString(text[prev:sp.Start])
		b.WriteString(Placeholder(sp.Type))
		prev = sp.End
	}
	b.WriteString(text[prev:])
	return b.String()
}
