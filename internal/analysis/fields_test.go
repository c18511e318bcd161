package analysis

import (
	"errors"
	"reflect"
	"testing"

	"github.com/staffer-dev/staffer-sims/internal/testutil"
	"github.com/staffer-dev/staffer-sims/prompts"
)

func keys(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Key
	}
	return out
}

func TestParseMandatoryFieldsEmbeddedPrompt(t *testing.T) {
	fields, err := ParseMandatoryFields(prompts.RecruiterPrompt)
	if err != nil {
		t.Fatalf("ParseMandatoryFields: %v", err)
	}
	if !reflect.DeepEqual(keys(fields), keys(DefaultMandatoryFields)) {
		t.Errorf("keys: got %v, want %v", keys(fields), keys(DefaultMandatoryFields))
	}
}

func TestParseMandatoryFieldsSkipsSubFields(t *testing.T) {
	fields, err := ParseMandatoryFields(testutil.RecruiterPromptMD)
	if err != nil {
		t.Fatalf("ParseMandatoryFields: %v", err)
	}
	want := []Field{{"job_title", "Job Title"}, {"location", "Location"}, {"vacancies", "Vacancies"}}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields: got %v, want %v", fields, want)
	}
}

func TestParseMandatoryFieldsMissingSection(t *testing.T) {
	_, err := ParseMandatoryFields("# Recruiter\n\nAsk questions.\n")
	if !errors.Is(err, ErrNoMandatorySection) {
		t.Fatalf("expected ErrNoMandatorySection, got %v", err)
	}
	if got := MandatoryFieldsOrDefault(""); !reflect.DeepEqual(got, DefaultMandatoryFields) {
		t.Errorf("fallback: got %v", got)
	}
}

func TestParseMandatoryFieldsEmptySection(t *testing.T) {
	doc := "### 🧱 MANDATORY FIELDS TO EXTRACT\n\n### NEXT\n- Job Title\n"
	if _, err := ParseMandatoryFields(doc); !errors.Is(err, ErrNoMandatorySection) {
		t.Fatalf("expected ErrNoMandatorySection, got %v", err)
	}
}

func TestFieldKey(t *testing.T) {
	tests := map[string]string{
		"Job Title":                "job_title",
		"Application deadline":     "application_deadline",
		"Preferred Languages":      "languages",
		"Time Zones Allowed":       "time_zones_allowed",
		"Hiring Manager/Team":      "hiring_manager_team",
		"Recruiter/Contact person": "recruiter_contact",
	}
	for name, want := range tests {
		if got := FieldKey(name); got != want {
			t.Errorf("FieldKey(%q) = %q, want %q", name, got, want)
		}
	}
}
