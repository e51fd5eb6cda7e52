package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// kvLine matches labeled lines, including the "FIELD key: value" lines
// backends emit when flattening form output.
var kvLine = regexp.MustCompile(`(?m)^\s*(?:FIELD\s+)?([A-Za-z][A-Za-z0-9 #/.'-]{0,40}?)\s*:\s*(\S.*?)\s*$`)

// kvPairs collects labeled values keyed by lowercased label. The first
// occurrence of a label wins so later page noise cannot overwrite it.
func kvPairs(text string) map[string]string {
	pairs := make(map[string]string)
	for _, m := range kvLine.FindAllStringSubmatch(text, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		if _, seen := pairs[key]; !seen {
			pairs[key] = strings.TrimSpace(m[2])
		}
	}
	return pairs
}

// fieldMapping resolves one canonical field from source labels tried in
// priority order; the first non-empty match wins. This absorbs label
// variance across bureau formats without per-bureau branching.
type fieldMapping struct {
	canonical string
	synonyms  []string
}

func mapFields(src map[string]string, mappings []fieldMapping) map[string]string {
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		for _, syn := range m.synonyms {
			if v := src[syn]; v != "" {
				out[m.canonical] = v
				break
			}
		}
	}
	return out
}

// parseAmount strips currency symbols and thousands separators before
// conversion. Malformed input returns ok=false so the caller leaves the
// field absent; absent and zero are different facts downstream.
func parseAmount(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func strptr(s string) *string {
	return &s
}

func f64ptr(v float64) *float64 {
	return &v
}
