package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"triage-agent/internal/domain"
	"triage-agent/internal/retrieval"
)

type fakeGenerator struct {
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.reply == nil {
		return "", errors.New("no reply configured")
	}
	return f.reply(prompt)
}

// scriptedReplies answers by prompt kind.
func scriptedReplies(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "what would you like to ask the patient next"):
		return "How long have you had these symptoms?", nil
	case strings.HasPrefix(prompt, "As a medical professional"):
		return "Likely a viral infection.", nil
	case strings.Contains(prompt, "comprehensive triage recommendation"):
		return fullRecommendation, nil
	}
	return "", errors.New("unexpected prompt")
}

var fullRecommendation = strings.Join([]string{
	"1. **Triage Recommendation**: primary care",
	"2. **Detailed Reasoning**: fever with headache for two days",
	"3. **Immediate Actions**: rest and fluids",
	"4. **Red Flags**: stiff neck, confusion",
	"5. **Follow-up Plan**: see a doctor within 48 hours",
	"6. **Precautions**: avoid contact with others",
}, "\n")

type fakeRetriever struct {
	queries []string
	out     string
}

func (f *fakeRetriever) RetrieveContext(_ context.Context, query string) string {
	f.queries = append(f.queries, query)
	if f.out == "" {
		return "Flu: fever, headache, chills"
	}
	return f.out
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string, int) ([]string, error) {
	return nil, &domain.RetrievalError{Backend: "test", Err: errors.New("index unavailable")}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, gen Generator, r ContextRetriever, opts ...Option) *TriageService {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	svc, err := NewTriageService(gen, r, opts...)
	require.NoError(t, err)
	return svc
}

func expectUsecaseError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, code, ue.Code)
	require.Equal(t, reason, ue.Reason)
}

func sessionWith(turns ...domain.Turn) domain.Session {
	s := domain.NewSession("s-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s.History = turns
	return s
}

const firstComplaint = "I have a severe headache and fever that started 2 days ago"

func TestNewTriageService_ValidatesDependencies(t *testing.T) {
	_, err := NewTriageService(nil, &fakeRetriever{})
	require.ErrorContains(t, err, "generator must not be nil")
	_, err = NewTriageService(&fakeGenerator{}, nil)
	require.ErrorContains(t, err, "retriever must not be nil")
}

func TestProcessTurn_FirstTurnAsksFollowUp(t *testing.T) {
	gen := &fakeGenerator{reply: scriptedReplies}
	r := &fakeRetriever{}
	svc := newTestService(t, gen, r)

	out, err := svc.ProcessTurn(context.Background(), sessionWith(), firstComplaint)
	require.NoError(t, err)

	require.False(t, out.Complete)
	require.Empty(t, out.FinalRecommendation)
	require.Equal(t, []domain.Turn{
		domain.UserTurn(firstComplaint),
		domain.AssistantTurn("How long have you had these symptoms?"),
	}, out.History)

	require.Subset(t, out.Profile.Symptoms, []string{"headache", "fever"})
	require.Equal(t, domain.SeveritySevere, out.Profile.Severity)
	require.Equal(t, "2 days", out.Profile.Duration)

	require.Len(t, gen.prompts, 1)
	require.Contains(t, gen.prompts[0], firstComplaint)
	require.Empty(t, r.queries)
}

func TestProcessTurn_FastPathConcludes(t *testing.T) {
	gen := &fakeGenerator{reply: scriptedReplies}
	r := &fakeRetriever{}
	svc := newTestService(t, gen, r)

	in := sessionWith(
		domain.UserTurn(firstComplaint),
		domain.AssistantTurn("Anything else?"),
		domain.UserTurn("It gets worse at night"),
		domain.AssistantTurn("Have you taken anything?"),
	)
	out, err := svc.ProcessTurn(context.Background(), in, "Just water")
	require.NoError(t, err)

	require.True(t, out.Complete)
	require.Equal(t, fullRecommendation, out.FinalRecommendation)
	for _, section := range RecommendationSections {
		require.Contains(t, out.FinalRecommendation, section)
	}

	require.Len(t, out.History, 7)
	require.Equal(t, domain.UserTurn("Just water"), out.History[4])
	require.Equal(t, domain.AssistantTurn("**Symptom Analysis:** Likely a viral infection."), out.History[5])
	require.Equal(t, domain.AssistantTurn("**Final Medical Assessment:**\n\n"+fullRecommendation), out.History[6])

	require.Equal(t, []string{"fever headache", "fever headache"}, r.queries)
	require.Len(t, gen.prompts, 2)
	require.Contains(t, gen.prompts[0], "Patient Symptoms: fever, headache")
	require.Contains(t, gen.prompts[1], "- Severity: severe")
	require.Contains(t, gen.prompts[1], "- Age: Not specified")
	require.Contains(t, gen.prompts[1], "**Symptom Analysis:**")
}

func TestProcessTurn_RetrievalFailureStillCompletes(t *testing.T) {
	adapter, err := retrieval.NewAdapter(failingSearcher{}, retrieval.WithLogger(quietLogger()))
	require.NoError(t, err)
	gen := &fakeGenerator{reply: scriptedReplies}
	svc := newTestService(t, gen, adapter)

	in := sessionWith(
		domain.UserTurn(firstComplaint),
		domain.AssistantTurn("q1"),
		domain.UserTurn("a1"),
		domain.AssistantTurn("q2"),
	)
	out, err := svc.ProcessTurn(context.Background(), in, "a2")
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.Contains(t, gen.prompts[0], "Medical Context: context unavailable")
	require.Contains(t, gen.prompts[1], "Medical Context:\ncontext unavailable")
}

func TestProcessTurn_GenerationFailureUsesFallbackQuestions(t *testing.T) {
	gen := &fakeGenerator{reply: func(string) (string, error) {
		return "", &domain.GenerationError{Provider: "test", Err: errors.New("quota")}
	}}
	svc := newTestService(t, gen, &fakeRetriever{})

	cases := []struct {
		history []domain.Turn
		want    string
	}{
		{nil, "Can you tell me more about your symptoms?"},
		{[]domain.Turn{domain.UserTurn("hi"), domain.AssistantTurn("q")}, "How long have you been experiencing these symptoms?"},
		{[]domain.Turn{
			domain.UserTurn("hi"), domain.AssistantTurn("q"),
			domain.UserTurn("hi"), domain.AssistantTurn("q"),
			domain.UserTurn("hi"), domain.AssistantTurn("q"),
			domain.UserTurn("hi"), domain.AssistantTurn("q"),
			domain.UserTurn("hi"), domain.AssistantTurn("q"),
		}, "Are you currently taking any medications?"},
	}
	for _, tc := range cases {
		out, err := svc.ProcessTurn(context.Background(), sessionWith(tc.history...), "hello there")
		require.NoError(t, err)
		require.False(t, out.Complete)
		require.Equal(t, domain.AssistantTurn(tc.want), out.History[len(out.History)-1])
	}
}

func TestProcessTurn_GenerationFailureDuringConclusion(t *testing.T) {
	gen := &fakeGenerator{reply: func(string) (string, error) { return "   ", nil }}
	svc := newTestService(t, gen, &fakeRetriever{})

	in := sessionWith(
		domain.UserTurn(firstComplaint),
		domain.AssistantTurn("q1"),
		domain.UserTurn("a1"),
		domain.AssistantTurn("q2"),
	)
	out, err := svc.ProcessTurn(context.Background(), in, "a2")
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.Equal(t,
		"**Symptom Analysis:** Based on your symptoms (fever, headache), I need to gather more information to provide a proper assessment.",
		out.History[5].Content)
	require.Equal(t, degradedRecommendation, out.FinalRecommendation)
	for _, section := range RecommendationSections {
		require.Contains(t, out.FinalRecommendation, section)
	}
}

func TestProcessTurn_CeilingWithoutSymptomsSkipsAnalysis(t *testing.T) {
	gen := &fakeGenerator{reply: scriptedReplies}
	r := &fakeRetriever{}
	svc := newTestService(t, gen, r)

	var history []domain.Turn
	for i := 0; i < 11; i++ {
		if i%2 == 0 {
			history = append(history, domain.UserTurn("I just feel off"))
		} else {
			history = append(history, domain.AssistantTurn("Tell me more."))
		}
	}
	out, err := svc.ProcessTurn(context.Background(), sessionWith(history...), "still off")
	require.NoError(t, err)

	require.True(t, out.Complete)
	require.Len(t, out.History, 13)
	require.True(t, strings.HasPrefix(out.History[12].Content, "**Final Medical Assessment:**"))
	require.Equal(t, []string{retrieval.GenericQuery}, r.queries)
	require.Len(t, gen.prompts, 1)
	require.Contains(t, gen.prompts[0], "- Symptoms: Not specified")
}

func TestProcessTurn_CompleteSessionRejected(t *testing.T) {
	gen := &fakeGenerator{reply: scriptedReplies}
	svc := newTestService(t, gen, &fakeRetriever{})

	in := sessionWith(domain.UserTurn("x"), domain.AssistantTurn("y"))
	in.Complete = true
	in.FinalRecommendation = "done"

	out, err := svc.ProcessTurn(context.Background(), in, "one more thing")
	expectUsecaseError(t, err, ErrorSessionComplete, "session_complete")
	require.Equal(t, in, out)
	require.Empty(t, gen.prompts)
}

func TestProcessTurn_ValidationErrors(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{reply: scriptedReplies}, &fakeRetriever{}, WithMaxMessageLength(10))

	_, err := svc.ProcessTurn(context.Background(), sessionWith(), "   ")
	expectUsecaseError(t, err, ErrorInvalidInput, "empty_message")

	_, err = svc.ProcessTurn(context.Background(), sessionWith(), "this is far too long")
	expectUsecaseError(t, err, ErrorInvalidInput, "message_too_long")

	_, err = svc.ProcessTurn(context.Background(), sessionWith(), "ééééééééé")
	require.NoError(t, err)
}

func TestProcessTurn_DoesNotMutateInput(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{reply: scriptedReplies}, &fakeRetriever{})

	backing := make([]domain.Turn, 2, 8)
	backing[0] = domain.UserTurn("I have a cough")
	backing[1] = domain.AssistantTurn("Since when?")
	in := sessionWith(backing...)
	in.History = backing

	out, err := svc.ProcessTurn(context.Background(), in, "since yesterday")
	require.NoError(t, err)
	require.Len(t, out.History, 4)

	require.Len(t, in.History, 2)
	require.Equal(t, domain.Turn{}, backing[:3][2])
	require.Equal(t, domain.EmptyProfile(), in.Profile)
}

func TestProcessTurn_RecoversPanics(t *testing.T) {
	gen := &fakeGenerator{reply: func(string) (string, error) { panic("boom") }}
	svc := newTestService(t, gen, &fakeRetriever{})

	in := sessionWith()
	out, err := svc.ProcessTurn(context.Background(), in, "hello")
	expectUsecaseError(t, err, ErrorInternal, "panic")
	require.ErrorContains(t, err, "boom")
	require.Equal(t, in, out)
}

func TestProcessTurn_TimeoutFallsBack(t *testing.T) {
	blocking := generatorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc := newTestService(t, blocking, &fakeRetriever{}, WithCallTimeout(20*time.Millisecond))

	out, err := svc.ProcessTurn(context.Background(), sessionWith(), "hello there")
	require.NoError(t, err)
	require.Equal(t, "Can you tell me more about your symptoms?", out.History[1].Content)
}

func TestProcessTurn_CancelledCallerLeavesSessionUnchanged(t *testing.T) {
	honoursCtx := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return scriptedReplies(prompt)
	})
	svc := newTestService(t, honoursCtx, &fakeRetriever{})

	in := sessionWith(
		domain.UserTurn(firstComplaint),
		domain.AssistantTurn("Anything else?"),
		domain.UserTurn("It gets worse at night"),
		domain.AssistantTurn("Have you taken anything?"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := svc.ProcessTurn(ctx, in, "Just water")
	expectUsecaseError(t, err, ErrorInternal, "cancelled")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, in, out)
	require.False(t, out.Complete)
	require.Empty(t, out.FinalRecommendation)
}

func TestProcessTurn_CancelledCallerDuringGathering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generatorFunc(func(context.Context, string) (string, error) {
		cancel()
		return "", context.Canceled
	})
	svc := newTestService(t, gen, &fakeRetriever{})

	in := sessionWith()
	out, err := svc.ProcessTurn(ctx, in, firstComplaint)
	expectUsecaseError(t, err, ErrorInternal, "cancelled")
	require.Equal(t, in, out)
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestProcessTurn_SetsTimestamps(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{reply: scriptedReplies}, &fakeRetriever{})
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	out, err := svc.ProcessTurn(context.Background(), domain.Session{}, "hello")
	require.NoError(t, err)
	require.Equal(t, fixed, out.UpdatedAt)
	require.Equal(t, fixed, out.CreatedAt)
}

func TestConsultationTerminatesWithinCeiling(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{reply: scriptedReplies}, &fakeRetriever{})

	sess := sessionWith()
	for i := 0; i < 20 && !sess.Complete; i++ {
		var err error
		sess, err = svc.ProcessTurn(context.Background(), sess, "not sure")
		require.NoError(t, err)
	}
	require.True(t, sess.Complete)
	require.LessOrEqual(t, sess.Status().Responses, 7)
}
