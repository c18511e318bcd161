package analysis

import "strings"

const previewLen = 100

// Summarize numbers the turns and tags the kinds of information the SUT
// surfaced.
func Summarize(turns []Turn) ConversationSummary {
	s := ConversationSummary{
		TotalTurns:             len(turns),
		ConversationFlow:       make([]ConversationTurn, 0, len(turns)),
		KeyInformationGathered: []string{},
		ConversationQuality:    "unknown",
	}

	seen := make(map[string]bool)
	tag := func(name string) {
		if !seen[name] {
			seen[name] = true
			s.KeyInformationGathered = append(s.KeyInformationGathered, name)
		}
	}

	for i, t := range turns {
		s.ConversationFlow = append(s.ConversationFlow, ConversationTurn{
			Turn:           i + 1,
			Role:           t.Role,
			Content:        t.Content,
			ContentPreview: Preview(t.Content),
		})

		if t.Role != RoleSystem {
			continue
		}
		content := strings.ToLower(t.Content)
		if containsAny(content, []string{"job title:", "salary range:", "experience level:"}) {
			tag("role_requirements")
		}
		if containsAny(content, []string{"location:", "remote"}) {
			tag("work_location")
		}
		if containsAny(content, []string{"skills:", "technologies:"}) {
			tag("technical_skills")
		}
	}
	return s
}

// Preview returns the first 100 characters of s, with an ellipsis when
// truncated.
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}

// ExtractInformation builds the structured hiring record from the whole
// conversation.
func (a *Analyzer) ExtractInformation(turns []Turn) InformationGathered {
	fields := a.ExtractFields(joinContent(turns))

	info := InformationGathered{
		RoleType:         nonEmpty(fields["job_title"]),
		Location:         nonEmpty(fields["location"]),
		WorkplaceType:    nonEmpty(fields["workplace_type"]),
		EmploymentType:   nonEmpty(fields["employment_type"]),
		ExperienceLevel:  nonEmpty(fields["seniority_level"]),
		SalaryRange:      nonEmpty(fields["salary_range"]),
		SkillsMentioned:  ParseSkills(fields["skills"]),
		Responsibilities: []string{},
		Deadline:         nonEmpty(fields["application_deadline"]),
		Fields:           fields,
	}
	if r := fields["responsibilities"]; r != "" {
		info.Responsibilities = append(info.Responsibilities, r)
	}
	return info
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
