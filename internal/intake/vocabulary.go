package intake

import "regexp"

// SymptomKeywords is the fixed symptom vocabulary. A tag is present when its
// keyword occurs anywhere in the lowercased transcript.
var SymptomKeywords = []string{
	"pain", "fever", "headache", "cough", "nausea", "vomiting", "dizziness",
	"shortness of breath", "chest pain", "abdominal pain", "fatigue",
	"sore throat", "runny nose", "congestion", "diarrhea", "constipation",
	"rash", "swelling", "bleeding", "bruising", "weakness", "numbness",
	"sweating", "chills", "loss of appetite", "weight loss", "weight gain",
}

var (
	maleKeywords   = []string{"male", "man", "boy"}
	femaleKeywords = []string{"female", "woman", "girl"}
)

// Severity tiers, checked severe first.
var (
	severeKeywords   = []string{"severe", "very bad", "terrible", "awful"}
	moderateKeywords = []string{"moderate", "bad", "uncomfortable"}
	mildKeywords     = []string{"mild", "slight", "okay", "manageable"}
)

// Signal vocabularies used by the continuation policy. They overlap with, but
// are not identical to, the extraction patterns.
var (
	durationSignals = []string{
		"hours", "days", "weeks", "months", "yesterday", "today",
		"morning", "evening", "last night", "this morning", "this evening",
	}
	severitySignals = []string{
		"severe", "mild", "moderate", "bad", "terrible", "okay",
		"manageable", "uncomfortable", "slight", "awful",
	}
)

var agePattern = regexp.MustCompile(`(\d+)\s*(?:years?\s*old|y\.?o\.?)`)

// durationPatterns are tried in order; the first match wins.
var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*(?:hours?|hrs?)`),
	regexp.MustCompile(`(\d+)\s*(?:days?|d)`),
	regexp.MustCompile(`(\d+)\s*(?:weeks?|wks?)`),
	regexp.MustCompile(`(\d+)\s*(?:months?|mos?)`),
	regexp.MustCompile(`(yesterday|today|this morning|this evening|last night)`),
}
