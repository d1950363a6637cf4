package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"triage-agent/internal/domain"
)

var errEmptyCompletion = errors.New("usecase: empty completion")

// Synthesizer turns a finished consultation into the structured triage
// recommendation. Its output is not parsed.
type Synthesizer struct {
	gen     Generator
	timeout time.Duration
}

func NewSynthesizer(gen Generator, timeout time.Duration) (*Synthesizer, error) {
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	return &Synthesizer{gen: gen, timeout: timeout}, nil
}

func (s *Synthesizer) Synthesize(ctx context.Context, history []domain.Turn, profile domain.PatientProfile, medicalContext string) (string, error) {
	return generate(ctx, s.gen, s.timeout, buildRecommendationPrompt(history, profile, medicalContext))
}

// generate bounds one model call by timeout and treats blank output as a
// failure.
func generate(ctx context.Context, gen Generator, timeout time.Duration, prompt string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}
