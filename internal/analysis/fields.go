package analysis

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoMandatorySection is returned when a prompt document has no mandatory
// fields section or the section lists no fields.
var ErrNoMandatorySection = errors.New("no mandatory fields section")

// Field is a mandatory recruiting field: its analysis key and the display
// label used in the recruiter prompt.
type Field struct {
	Key   string
	Label string
}

// DefaultMandatoryFields is used when no prompt document can be parsed.
var DefaultMandatoryFields = []Field{
	{"job_title", "Job Title"},
	{"workplace_type", "Workplace Type"},
	{"employment_type", "Employment Type"},
	{"location", "Location"},
	{"seniority_level", "Seniority Level"},
	{"skills", "Skills"},
	{"responsibilities", "Responsibilities"},
	{"salary_range", "Salary Range"},
}

// knownLabels maps prompt labels to analysis keys. Order matters for the
// partial-match fallback.
var knownLabels = []Field{
	{"job_title", "Job Title"},
	{"workplace_type", "Workplace Type"},
	{"employment_type", "Employment Type"},
	{"location", "Location"},
	{"seniority_level", "Seniority Level"},
	{"education_level", "Education Level"},
	{"skills", "Skills"},
	{"vacancies", "Vacancies"},
	{"languages", "Languages"},
	{"responsibilities", "Responsibilities"},
	{"application_deadline", "Application deadline"},
	{"salary_range", "Salary Range"},
	{"recruiter_contact", "Recruiter/Contact person"},
	{"internal_notes", "Internal Notes"},
}

var (
	mandatoryHeader = regexp.MustCompile(`(?i)### 🧱 MANDATORY FIELDS TO EXTRACT`)
	bulletPrefix    = regexp.MustCompile(`^[-*]\s*`)
)

// ParseMandatoryFields reads the "MANDATORY FIELDS TO EXTRACT" section of a
// recruiter prompt. Each bullet is a field; lines containing "→" describe
// conditional sub-fields and are skipped.
func ParseMandatoryFields(doc string) ([]Field, error) {
	loc := mandatoryHeader.FindStringIndex(doc)
	if loc == nil {
		return nil, ErrNoMandatorySection
	}
	section := doc[loc[1]:]
	if end := strings.Index(section, "###"); end >= 0 {
		section = section[:end]
	}

	var fields []Field
	seen := make(map[string]bool)
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "---") || strings.Contains(line, "→") {
			continue
		}
		name := strings.TrimSpace(strings.ReplaceAll(bulletPrefix.ReplaceAllString(line, ""), ":", ""))
		if name == "" {
			continue
		}
		key := FieldKey(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		fields = append(fields, Field{Key: key, Label: name})
	}
	if len(fields) == 0 {
		return nil, ErrNoMandatorySection
	}
	return fields, nil
}

// MandatoryFieldsOrDefault parses doc and falls back to
// DefaultMandatoryFields on any failure.
func MandatoryFieldsOrDefault(doc string) []Field {
	fields, err := ParseMandatoryFields(doc)
	if err != nil {
		return DefaultMandatoryFields
	}
	return fields
}

// FieldKey maps a prompt label to its analysis key: exact known label,
// then a known label contained in the name, then snake_case.
func FieldKey(name string) string {
	for _, f := range knownLabels {
		if f.Label == name {
			return f.Key
		}
	}
	lower := strings.ToLower(name)
	for _, f := range knownLabels {
		if strings.Contains(lower, strings.ToLower(f.Label)) {
			return f.Key
		}
	}
	return strings.NewReplacer(" ", "_", "/", "_").Replace(lower)
}

// Labels returns fields as a key -> label map.
func Labels(fields []Field) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Label
	}
	return m
}
