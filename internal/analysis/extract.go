package analysis

import (
	"regexp"
	"strings"
	"unicode"
)

const titleNouns = `developer|engineer|manager|analyst|specialist|coordinator|director|lead|architect|consultant|designer|marketer|sales|accountant|lawyer|doctor|nurse|teacher|writer|editor|administrator|executive|officer|representative|assistant|clerk|technician|operator|supervisor`

var (
	jobTitlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:job title|position|role|hiring for|looking for|need a|want a)\s*:?\s*([^.!?\n]+)`),
		regexp.MustCompile(`(?i)(?:is|are|would be|should be)\s+(?:a\s+)?([^.!?\n]+(?:` + titleNouns + `))`),
		regexp.MustCompile(`(?i)(?:we need|looking for|hiring)\s+(?:a\s+)?([^.!?\n]+(?:` + titleNouns + `))`),
	}

	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:in|at|based in|located in|working in)\s+([^.!?\n,]+(?:city|town|state|country|remote|hybrid|onsite))`),
		regexp.MustCompile(`(?i)(?:remote|hybrid|onsite|on-site)`),
		regexp.MustCompile(`(?i)\b(?:` + strings.Join(cities, "|") + `)\b`),
	}

	seniorityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:junior|entry-level|entry level|associate|assistant)\b`),
		regexp.MustCompile(`(?i)\b(?:mid-level|mid level|intermediate|middle)\b`),
		regexp.MustCompile(`(?i)\b(?:senior|sr\.|sr)\b`),
		regexp.MustCompile(`(?i)\b(?:lead|principal|staff|architect)\b`),
		regexp.MustCompile(`(?i)\b(?:director|vp|vice president|executive|chief)\b`),
	}

	skillsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:skills|technologies|tools|requirements|must have|nice to have)[:\s]+([^.!?\n]+)`),
		regexp.MustCompile(`(?i)(?:experience with|knowledge of|proficient in|familiar with)[:\s]+([^.!?\n]+)`),
	}

	salaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$[\d,]+(?:-\$[\d,]+)?`),
		regexp.MustCompile(`(?i)(?:salary|pay|compensation)[:\s]+([^.!?\n]+)`),
		regexp.MustCompile(`(?i)(?:budget|range)[:\s]+([^.!?\n]+)`),
	}

	responsibilityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:responsibilities|duties|tasks|what they will do|role involves)[:\s]+([^.!?\n]+)`),
		regexp.MustCompile(`(?i)(?:will be responsible for|will handle|will manage)[:\s]+([^.!?\n]+)`),
	}

	skillSplit = regexp.MustCompile(`[,;|&]|\band\b`)
)

// cities is the location gazetteer matched as whole words.
var cities = []string{
	"san francisco", "sf", "new york", "ny", "los angeles", "la", "chicago", "boston",
	"seattle", "austin", "denver", "miami", "atlanta", "phoenix", "dallas", "houston",
	"philadelphia", "detroit", "minneapolis", "portland", "las vegas", "orlando", "tampa",
	"nashville", "pittsburgh", "cleveland", "columbus", "indianapolis", "milwaukee",
	"kansas city", "salt lake city", "richmond", "norfolk", "greensboro", "raleigh",
	"charlotte", "jacksonville", "memphis", "louisville", "birmingham", "oklahoma city",
	"tulsa", "wichita", "omaha", "des moines", "cedar rapids", "davenport", "rockford",
	"peoria", "springfield", "madison", "rochester", "buffalo", "syracuse", "albany",
	"utica", "binghamton", "poughkeepsie", "newburgh", "kingston", "glens falls",
	"watertown", "ogdensburg", "massena", "plattsburgh", "burlington", "rutland", "barre",
	"montpelier", "concord", "nashua", "manchester", "portsmouth", "dover", "laconia",
	"berlin", "claremont", "lebanon", "keene", "exeter", "hampton", "salem", "derry",
	"hudson", "londonderry", "merrimack", "bedford", "goffstown", "weare", "new boston",
	"lyndeborough", "mont vernon", "amherst", "milford", "wilton", "mason", "greenville",
	"new ipswich", "jaffrey", "peterborough", "temple", "sharon", "dublin", "hancock",
	"antrim", "bennington", "francestown", "greenfield",
}

// ExtractFields runs the extractor for every mandatory field over text.
// Fields with no plausible match map to the empty string.
func (a *Analyzer) ExtractFields(text string) map[string]string {
	out := make(map[string]string, len(a.fields))
	for _, f := range a.fields {
		out[f.Key] = extractField(f, text)
	}
	return out
}

func extractField(f Field, text string) string {
	lower := strings.ToLower(text)
	switch f.Key {
	case "job_title":
		return firstMatch(jobTitlePatterns, lower, func(v string) bool {
			return len(v) > 3 && len(v) < 50
		}, titleCase)
	case "location":
		return firstMatch(locationPatterns, lower, func(v string) bool {
			return v != "" && len(v) < 50
		}, titleCase)
	case "employment_type":
		return employmentType(lower)
	case "workplace_type":
		return workplaceType(lower)
	case "seniority_level":
		for _, re := range seniorityPatterns {
			if m := re.FindString(lower); m != "" {
				return titleCase(m)
			}
		}
		return ""
	case "skills":
		return firstMatch(skillsPatterns, lower, func(v string) bool { return len(v) > 5 }, nil)
	case "salary_range":
		return firstMatch(salaryPatterns, text, func(v string) bool {
			return strings.Contains(v, "$") || strings.Contains(strings.ToLower(v), "salary")
		}, nil)
	case "responsibilities":
		return firstMatch(responsibilityPatterns, lower, func(v string) bool { return len(v) > 10 }, nil)
	default:
		return genericField(f.Label, lower)
	}
}

// firstMatch returns the first capture (or whole match when the pattern has
// no group) across patterns that passes accept, optionally transformed.
func firstMatch(patterns []*regexp.Regexp, text string, accept func(string) bool, transform func(string) string) string {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := m[0]
			if len(m) > 1 {
				v = m[1]
			}
			v = strings.TrimSpace(v)
			if !accept(v) {
				continue
			}
			if transform != nil {
				return transform(v)
			}
			return v
		}
	}
	return ""
}

func employmentType(lower string) string {
	switch {
	case strings.Contains(lower, "full-time") || strings.Contains(lower, "fulltime"):
		return "Full-time"
	case strings.Contains(lower, "part-time") || strings.Contains(lower, "parttime"):
		return "Part-time"
	case strings.Contains(lower, "contract"):
		return "Contract"
	case strings.Contains(lower, "intern"):
		return "Internship"
	}
	return ""
}

func workplaceType(lower string) string {
	switch {
	case strings.Contains(lower, "remote"):
		return "Remote"
	case strings.Contains(lower, "hybrid"):
		return "Hybrid"
	case strings.Contains(lower, "onsite") || strings.Contains(lower, "on-site"):
		return "Onsite"
	}
	return ""
}

func genericField(label, lower string) string {
	name := regexp.QuoteMeta(strings.ToLower(label))
	patterns := []*regexp.Regexp{
		regexp.MustCompile(name + `[:\s]+([^.!?\n]+)`),
		regexp.MustCompile(name + `\s+is\s+([^.!?\n]+)`),
		regexp.MustCompile(name + `\s+will be\s+([^.!?\n]+)`),
	}
	return firstMatch(patterns, lower, func(v string) bool { return len(v) > 2 }, nil)
}

// ParseSkills splits a skills blob on , ; | & and the word "and", then
// title-cases each fragment and drops fragments shorter than two characters.
func ParseSkills(text string) []string {
	skills := []string{}
	if text == "" {
		return skills
	}
	for _, part := range skillSplit.Split(text, -1) {
		part = strings.TrimSpace(part)
		if len(part) > 1 {
			skills = append(skills, titleCase(part))
		}
	}
	return skills
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
