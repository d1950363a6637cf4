package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"triage-agent/internal/domain"
	"triage-agent/internal/intake"
	"triage-agent/internal/retrieval"
)

const (
	defaultMaxMessageLen = 2000
	defaultCallTimeout   = 20 * time.Second
)

// Generator is the language-model collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ContextRetriever never fails; it degrades to a sentinel string instead.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string) string
}

// Phase names the step of a turn that produced a log line.
type Phase string

const (
	PhaseGathering    Phase = "gathering"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseRecommending Phase = "recommending"
)

// TriageService advances consultations one patient utterance at a time.
// It holds no per-session state and is safe for concurrent use across
// sessions; a single session must not be processed concurrently.
type TriageService struct {
	gen           Generator
	retriever     ContextRetriever
	synth         *Synthesizer
	maxMessageLen int
	callTimeout   time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

type Option func(*TriageService)

func WithMaxMessageLength(n int) Option {
	return func(s *TriageService) {
		if n > 0 {
			s.maxMessageLen = n
		}
	}
}

// WithCallTimeout bounds each model call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(s *TriageService) {
		if d >= 0 {
			s.callTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *TriageService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewTriageService(gen Generator, retriever ContextRetriever, opts ...Option) (*TriageService, error) {
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if retriever == nil {
		return nil, errors.New("usecase: retriever must not be nil")
	}
	s := &TriageService{
		gen:           gen,
		retriever:     retriever,
		maxMessageLen: defaultMaxMessageLen,
		callTimeout:   defaultCallTimeout,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	synth, err := NewSynthesizer(gen, s.callTimeout)
	if err != nil {
		return nil, err
	}
	s.synth = synth
	return s, nil
}

// ProcessTurn appends text as a patient turn and either asks one follow-up
// question or concludes the consultation with an analysis and a final
// recommendation. The input session is never modified; on error it is
// returned as is.
func (s *TriageService) ProcessTurn(ctx context.Context, sess domain.Session, text string) (out domain.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("process turn panicked", "session", sess.ID, "panic", r, "stack", string(debug.Stack()))
			out, err = sess, newError(ErrorInternal, "panic", fmt.Errorf("%v", r))
		}
	}()

	if sess.Complete {
		return sess, newError(ErrorSessionComplete, "session_complete", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return sess, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > s.maxMessageLen {
		return sess, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	next := sess
	next.History = append(domain.CloneHistory(sess.History), domain.UserTurn(text))
	next.Profile = intake.Extract(next.History)

	if intake.ShouldContinue(next.History) {
		next.History = append(next.History, domain.AssistantTurn(s.followUp(ctx, next)))
	} else {
		s.conclude(ctx, &next)
	}

	// Fallbacks cover collaborator failures only. If the caller went away the
	// turn is discarded so it can be retried.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return sess, newError(ErrorInternal, "cancelled", ctxErr)
	}

	next.UpdatedAt = s.now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = next.UpdatedAt
	}
	return next, nil
}

func (s *TriageService) followUp(ctx context.Context, sess domain.Session) string {
	q, err := generate(ctx, s.gen, s.callTimeout, buildFollowUpPrompt(sess.History))
	if err != nil {
		fallback := fallbackQuestion(len(sess.History))
		s.warnFallback(sess.ID, PhaseGathering, err)
		return fallback
	}
	return q
}

// conclude runs the analysis and recommendation phases and marks sess
// complete. Analysis is skipped when no symptom was extracted.
func (s *TriageService) conclude(ctx context.Context, sess *domain.Session) {
	symptoms := sess.Profile.Symptoms
	query := retrieval.QueryForSymptoms(symptoms)

	if len(symptoms) > 0 {
		medicalContext := s.retriever.RetrieveContext(ctx, query)
		analysis, err := generate(ctx, s.gen, s.callTimeout, buildAnalysisPrompt(symptoms, medicalContext))
		if err != nil {
			s.warnFallback(sess.ID, PhaseAnalyzing, err)
			analysis = analysisFallback(symptoms)
		}
		sess.History = append(sess.History, domain.AssistantTurn(analysisTurnPrefix+analysis))
	}

	medicalContext := s.retriever.RetrieveContext(ctx, query)
	rec, err := s.synth.Synthesize(ctx, sess.History, sess.Profile, medicalContext)
	if err != nil {
		s.warnFallback(sess.ID, PhaseRecommending, err)
		rec = degradedRecommendation
	}
	sess.History = append(sess.History, domain.AssistantTurn(finalTurnPrefix+rec))
	sess.FinalRecommendation = rec
	sess.Complete = true

	s.logger.Info("consultation concluded", "session", sess.ID, "turns", len(sess.History), "symptoms", symptoms)
}

func (s *TriageService) warnFallback(sessionID string, phase Phase, err error) {
	s.logger.Warn("generation failed, using fallback", "session", sessionID, "phase", phase, "err", err)
}
