// Package intake derives patient signals from conversation text and decides
// whether a consultation has gathered enough of them to conclude.
//
// Matching is plain substring search over the lowercased transcript with no
// negation handling: "no fever" still flags fever. Callers relying on
// compatibility with earlier assessments depend on that behavior.
package intake

import (
	"strconv"
	"strings"

	"triage-agent/internal/domain"
)

// Extract recomputes the patient profile from the full history. Every turn
// counts as evidence, including assistant turns. It has no side effects.
func Extract(history []domain.Turn) domain.PatientProfile {
	blob := strings.ToLower(domain.Transcript(history))
	p := domain.EmptyProfile()

	if m := agePattern.FindStringSubmatch(blob); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			p.Age = &age
		}
	}

	switch {
	case containsAny(blob, maleKeywords...):
		p.Gender = domain.GenderMale
	case containsAny(blob, femaleKeywords...):
		p.Gender = domain.GenderFemale
	}

	for _, kw := range SymptomKeywords {
		if strings.Contains(blob, kw) {
			p.Symptoms = append(p.Symptoms, kw)
		}
	}

	for _, re := range durationPatterns {
		if m := re.FindString(blob); m != "" {
			p.Duration = m
			break
		}
	}

	p.Severity = severityOf(blob)
	return p
}

func severityOf(blob string) domain.Severity {
	switch {
	case containsAny(blob, severeKeywords...):
		return domain.SeveritySevere
	case containsAny(blob, moderateKeywords...):
		return domain.SeverityModerate
	case containsAny(blob, mildKeywords...):
		return domain.SeverityMild
	}
	return ""
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
