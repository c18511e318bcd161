package controller

import (
	"regexp"
	"sort"
	"strings"
)

// LabelDetector treats a field as captured when its display label followed by
// a colon appears in the text as a whole word, case-insensitively
// ("Job Title: ..."). "Relocation:" does not capture "Location".
type LabelDetector struct {
	labels map[string]*regexp.Regexp
}

// NewLabelDetector builds a detector from a field key -> display label map.
func NewLabelDetector(fields map[string]string) *LabelDetector {
	labels := make(map[string]*regexp.Regexp, len(fields))
	for key, label := range fields {
		labels[key] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(label)) + `:`)
	}
	return &LabelDetector{labels: labels}
}

// Captured returns the sorted keys whose labels appear in text.
func (d *LabelDetector) Captured(text string) []string {
	var keys []string
	for key, re := range d.labels {
		if re.MatchString(text) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
