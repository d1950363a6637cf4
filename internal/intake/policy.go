package intake

import (
	"strings"

	"triage-agent/internal/domain"
)

const (
	// MinTurns is the history length needed to conclude once symptoms are known.
	MinTurns = 6
	// FastPathTurns replaces MinTurns when symptoms, duration and severity
	// signals are all present.
	FastPathTurns = 4
	// MaxTurns forces conclusion regardless of content.
	MaxTurns = 12
)

// Signals are the coarse evidence flags the continuation policy reads.
type Signals struct {
	HasSymptoms bool
	HasDuration bool
	HasSeverity bool
}

// DetectSignals scans the lowercased transcript for each signal vocabulary.
func DetectSignals(history []domain.Turn) Signals {
	blob := strings.ToLower(domain.Transcript(history))
	return Signals{
		HasSymptoms: containsAny(blob, SymptomKeywords...),
		HasDuration: containsAny(blob, durationSignals...),
		HasSeverity: containsAny(blob, severitySignals...),
	}
}

// ShouldContinue reports whether the assistant should keep asking questions.
// Turn counts include both authors. Because histories only grow, the MaxTurns
// ceiling bounds every consultation.
func ShouldContinue(history []domain.Turn) bool {
	turns := len(history)
	if turns >= MaxTurns {
		return false
	}
	sig := DetectSignals(history)
	required := MinTurns
	if sig.HasSymptoms && sig.HasDuration && sig.HasSeverity {
		required = FastPathTurns
	}
	return !(sig.HasSymptoms && turns >= required)
}
