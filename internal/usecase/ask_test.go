package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
	"github.com/fairyhunter13/career-agent-api/internal/domain/mocks"
	obsctx "github.com/fairyhunter13/career-agent-api/internal/observability"
	"github.com/fairyhunter13/career-agent-api/internal/service/prompt"
	"github.com/fairyhunter13/career-agent-api/internal/service/question"
	"github.com/fairyhunter13/career-agent-api/internal/service/ratelimiter"
	"github.com/fairyhunter13/career-agent-api/internal/usecase"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func policy() usecase.AskPolicy {
	return usecase.AskPolicy{
		WordLimitDefault: 150,
		WordLimitMax:     500,
		MaxOutputTokens:  2000,
		Temperature:      0.7,
		ModelTimeout:     time.Second,
		MaxAnswerLength:  10000,
		RecordTimeout:    time.Second,
	}
}

type fixture struct {
	gen *mocks.MockAnswerGenerator
	lim *mocks.MockRateLimiter
	rec *mocks.MockInteractionRecorder
	svc *usecase.AskService
}

func newFixture(t *testing.T, p usecase.AskPolicy) *fixture {
	t.Helper()
	f := &fixture{
		gen: &mocks.MockAnswerGenerator{},
		lim: &mocks.MockRateLimiter{},
		rec: &mocks.MockInteractionRecorder{},
	}
	f.gen.On("Model").Return("gemini-test").Maybe()
	f.svc = usecase.NewAskService(
		question.NewValidator(1, 2000),
		question.NewClassifier(nil),
		f.lim,
		prompt.NewDefaultComposer(true),
		f.gen,
		f.rec,
		nil,
		domain.Document{Text: "Built Kubernetes platforms at Acme.", Source: "test"},
		p,
	)
	f.svc.Now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) assertAll(t *testing.T) {
	t.Helper()
	f.svc.Wait()
	f.gen.AssertExpectations(t)
	f.lim.AssertExpectations(t)
	f.rec.AssertExpectations(t)
}

func outcomeIs(o domain.Outcome) any {
	return mock.MatchedBy(func(in domain.Interaction) bool { return in.Outcome == o })
}

func TestAsk_Success(t *testing.T) {
	f := newFixture(t, policy())
	ctx := obsctx.ContextWithRequestID(context.Background(), "req-1")

	f.lim.On("Admit", mock.Anything, "10.0.0.1", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything,
		mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, "Does the candidate have Kubernetes experience?") &&
				strings.Contains(p, "Built Kubernetes platforms at Acme.") &&
				strings.Contains(p, "under 150 words")
		}),
		364, float32(0.7),
	).Return("Yes, three years running EKS.", nil)
	f.rec.On("Record", mock.Anything, mock.MatchedBy(func(in domain.Interaction) bool {
		return in.Outcome == domain.OutcomeAnswered &&
			in.RequestID == "req-1" &&
			in.ClientFingerprint == "fp" &&
			in.QuestionLength == 46 &&
			!in.WantsElaboration &&
			in.AnswerLength == len("Yes, three years running EKS.") &&
			in.Model == "gemini-test" &&
			in.CreatedAt.Equal(fixedNow)
	})).Return(nil)

	res, err := f.svc.Ask(ctx, usecase.AskRequest{
		ClientID:    "10.0.0.1",
		Fingerprint: "fp",
		Question:    "  Does the candidate have Kubernetes experience?  ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerResult{
		Answer:   "Yes, three years running EKS.",
		Question: "Does the candidate have Kubernetes experience?",
	}, res)
	f.assertAll(t)
}

func TestAsk_ElaborationRaisesLimits(t *testing.T) {
	f := newFixture(t, policy())

	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything,
		mock.MatchedBy(func(p string) bool { return strings.Contains(p, "under 500 words") }),
		1064, float32(0.7),
	).Return("long answer", nil)
	f.rec.On("Record", mock.Anything, mock.MatchedBy(func(in domain.Interaction) bool {
		return in.Outcome == domain.OutcomeAnswered && in.WantsElaboration
	})).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "tell me more about the project"})
	require.NoError(t, err)
	f.assertAll(t)
}

func TestAsk_TokenBudgetCappedByCeiling(t *testing.T) {
	p := policy()
	p.MaxOutputTokens = 300
	f := newFixture(t, p)

	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, 300, float32(0.7)).Return("ok", nil)
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeAnswered)).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "give a detailed answer"})
	require.NoError(t, err)
	f.assertAll(t)
}

func TestAsk_InvalidQuestionSkipsLimiter(t *testing.T) {
	f := newFixture(t, policy())
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeInvalidQuestion)).Return(nil).Twice()

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: 42})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "Union Pacific?"})
	var ve *question.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, question.KindSuspiciousPattern, ve.Kind)

	f.assertAll(t)
	f.lim.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything)
	f.gen.AssertNotCalled(t, "GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_RateLimited(t *testing.T) {
	f := newFixture(t, policy())
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(&ratelimiter.LimitError{RetryAfter: 30 * time.Second})
	f.rec.On("Record", mock.Anything, mock.MatchedBy(func(in domain.Interaction) bool {
		return in.Outcome == domain.OutcomeRateLimited && in.QuestionLength == 5
	})).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.ErrorIs(t, err, domain.ErrRateLimited)
	var le *ratelimiter.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 30*time.Second, le.RetryAfter)

	f.assertAll(t)
	f.gen.AssertNotCalled(t, "GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_LimiterFailureIsInternal(t *testing.T) {
	f := newFixture(t, policy())
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(errors.New("boom"))
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeInternalError)).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.ErrorIs(t, err, domain.ErrInternal)
	f.assertAll(t)
}

func TestAsk_UpstreamError(t *testing.T) {
	f := newFixture(t, policy())
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeUpstreamError)).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.ErrorIs(t, err, domain.ErrUpstream)
	f.assertAll(t)
}

func TestAsk_ModelCallHasDeadline(t *testing.T) {
	p := policy()
	p.ModelTimeout = 20 * time.Millisecond
	f := newFixture(t, p)
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", domain.ErrUpstreamTimeout)
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeUpstreamError)).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	f.assertAll(t)
}

func TestAsk_BareDeadlineIsUpstreamTimeout(t *testing.T) {
	f := newFixture(t, policy())
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", context.DeadlineExceeded)
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeUpstreamError)).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	f.assertAll(t)
}

func TestAsk_ModelDeadlineAdaptsWithinBounds(t *testing.T) {
	p := policy()
	p.ModelTimeout = time.Second
	p.ModelTimeoutMin = 100 * time.Millisecond
	f := newFixture(t, p)
	assert.Equal(t, time.Second, f.svc.Upstream.Timeout.Current())

	var deadlines []time.Duration
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			d, _ := args.Get(0).(context.Context).Deadline()
			deadlines = append(deadlines, time.Until(d))
		}).
		Return("ok", nil)
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeAnswered)).Return(nil)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
		require.NoError(t, err)
	}
	require.Len(t, deadlines, 3)
	assert.LessOrEqual(t, deadlines[0], time.Second)
	assert.Less(t, deadlines[2], deadlines[0])
	assert.GreaterOrEqual(t, f.svc.Upstream.Timeout.Current(), 100*time.Millisecond)
	f.assertAll(t)
}

func TestAsk_UnsetModelTimeoutMinPinsDeadline(t *testing.T) {
	f := newFixture(t, policy())
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeAnswered)).Return(nil)

	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.NoError(t, err)
	assert.Equal(t, time.Second, f.svc.Upstream.Timeout.Current())
	f.assertAll(t)
}

func TestAsk_InvalidResponse(t *testing.T) {
	p := policy()
	p.MaxAnswerLength = 10
	for _, answer := range []string{"", "   \n", strings.Repeat("x", 11)} {
		f := newFixture(t, p)
		f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
		f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(answer, nil)
		f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeInvalidResponse)).Return(nil)

		_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
		require.ErrorIs(t, err, domain.ErrSchemaInvalid, "answer=%q", answer)
		f.assertAll(t)
	}

	f := newFixture(t, p)
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(strings.Repeat("é", 10), nil)
	f.rec.On("Record", mock.Anything, outcomeIs(domain.OutcomeAnswered)).Return(nil)
	_, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.NoError(t, err)
	f.assertAll(t)
}

func TestAsk_RecorderFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture(t, policy())
	f.lim.On("Admit", mock.Anything, "c", fixedNow).Return(nil)
	f.gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("fine", nil)
	f.rec.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down"))

	res, err := f.svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Answer)
	f.assertAll(t)
}

type ctxRecorder struct {
	mu     sync.Mutex
	errs   []error
	called chan struct{}
}

func (r *ctxRecorder) Record(ctx context.Context, _ domain.Interaction) error {
	<-r.called
	r.mu.Lock()
	r.errs = append(r.errs, ctx.Err())
	r.mu.Unlock()
	return nil
}

func TestAsk_RecordingSurvivesRequestCancel(t *testing.T) {
	rec := &ctxRecorder{called: make(chan struct{})}
	lim := ratelimiter.NewSlidingWindow(5, time.Minute, 0)
	svc := usecase.NewAskService(question.NewValidator(1, 2000), question.NewClassifier(nil), lim,
		prompt.NewDefaultComposer(false), &mocks.MockAnswerGenerator{}, rec, nil, domain.Document{}, policy())
	gen := svc.Generator.(*mocks.MockAnswerGenerator)
	gen.On("Model").Return("m")
	gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Ask(ctx, usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.NoError(t, err)
	cancel()
	close(rec.called)
	svc.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errs, 1)
	assert.NoError(t, rec.errs[0])
}

func TestAsk_NilRecorder(t *testing.T) {
	gen := &mocks.MockAnswerGenerator{}
	gen.On("Model").Return("m")
	gen.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)
	svc := usecase.NewAskService(question.NewValidator(1, 2000), question.NewClassifier(nil),
		ratelimiter.NewSlidingWindow(1, time.Minute, 0), prompt.NewDefaultComposer(false), gen,
		nil, nil, domain.Document{}, usecase.AskPolicy{WordLimitDefault: 150, WordLimitMax: 500, MaxAnswerLength: 100})

	_, err := svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), usecase.AskRequest{ClientID: "c", Question: "hello"})
	require.ErrorIs(t, err, domain.ErrRateLimited)
	svc.Wait()
}
