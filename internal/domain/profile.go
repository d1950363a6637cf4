package domain

// Gender is the extracted patient gender.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

// Severity is the extracted symptom severity tier. The zero value means no
// tier keyword was found.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// PatientProfile is derived from a conversation history and never stored as
// a source of truth. Recomputing it from the same history yields an equal value.
type PatientProfile struct {
	Age      *int     `json:"age,omitempty"`
	Gender   Gender   `json:"gender"`
	Symptoms []string `json:"symptoms"`
	Duration string   `json:"duration,omitempty"`
	Severity Severity `json:"severity,omitempty"`

	// Reserved; no extraction populates these.
	MedicalHistory []string `json:"medical_history"`
	Medications    []string `json:"medications"`
	Allergies      []string `json:"allergies"`
}

// EmptyProfile returns a profile with every field at its default.
func EmptyProfile() PatientProfile {
	return PatientProfile{
		Gender:         GenderUnspecified,
		Symptoms:       []string{},
		MedicalHistory: []string{},
		Medications:    []string{},
		Allergies:      []string{},
	}
}

// HasSymptoms reports whether any symptom tag was extracted.
func (p PatientProfile) HasSymptoms() bool {
	return len(p.Symptoms) > 0
}
