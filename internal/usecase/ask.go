// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fairyhunter13/career-agent-api/internal/adapter/observability"
	"github.com/fairyhunter13/career-agent-api/internal/domain"
	obsctx "github.com/fairyhunter13/career-agent-api/internal/observability"
	"github.com/fairyhunter13/career-agent-api/internal/service/prompt"
	"github.com/fairyhunter13/career-agent-api/internal/service/question"
)

// TokenCounter estimates prompt and answer size for metrics and logs.
type TokenCounter interface {
	Count(text string) int
}

// AskPolicy holds the tunables of the ask pipeline.
type AskPolicy struct {
	WordLimitDefault int
	WordLimitMax     int
	MaxOutputTokens  int
	Temperature      float32
	ModelTimeout     time.Duration
	ModelTimeoutMin  time.Duration
	MaxAnswerLength  int
	RecordTimeout    time.Duration
}

// AskRequest is one question from one client. ClientID keys the rate
// limiter; Fingerprint is the hashed identity that may be logged or stored.
type AskRequest struct {
	ClientID    string
	Fingerprint string
	Question    any
}

// AskService runs validate, admit, classify, compose, generate and check for
// one question. It performs no retries.
type AskService struct {
	Validator  *question.Validator
	Classifier *question.Classifier
	Limiter    domain.RateLimiter
	Composer   *prompt.Composer
	Generator  domain.AnswerGenerator
	Recorder   domain.InteractionRecorder
	Tokens     TokenCounter
	Document   domain.Document
	Policy     AskPolicy
	Upstream   *obsctx.ObservableClient
	Now        func() time.Time

	pending sync.WaitGroup
}

// NewAskService wires the pipeline. recorder and tokens may be nil.
func NewAskService(v *question.Validator, c *question.Classifier, l domain.RateLimiter, comp *prompt.Composer,
	g domain.AnswerGenerator, r domain.InteractionRecorder, tokens TokenCounter, doc domain.Document, p AskPolicy,
) *AskService {
	if p.ModelTimeout <= 0 {
		p.ModelTimeout = 30 * time.Second
	}
	if p.ModelTimeoutMin <= 0 || p.ModelTimeoutMin > p.ModelTimeout {
		p.ModelTimeoutMin = p.ModelTimeout
	}
	if p.RecordTimeout <= 0 {
		p.RecordTimeout = 2 * time.Second
	}
	return &AskService{
		Validator:  v,
		Classifier: c,
		Limiter:    l,
		Composer:   comp,
		Generator:  g,
		Recorder:   r,
		Tokens:     tokens,
		Document:   doc,
		Policy:     p,
		Upstream:   obsctx.NewObservableClient("model", p.ModelTimeoutMin, p.ModelTimeout),
		Now:        time.Now,
	}
}

// Ask answers one question. Errors are *question.ValidationError,
// *ratelimiter.LimitError, or wrap domain.ErrUpstream,
// domain.ErrUpstreamTimeout, domain.ErrSchemaInvalid or domain.ErrInternal.
func (s *AskService) Ask(ctx domain.Context, req AskRequest) (domain.AnswerResult, error) {
	start := s.Now()
	lg := obsctx.LoggerFromContext(ctx)
	rec := domain.Interaction{
		RequestID:         obsctx.RequestIDFromContext(ctx),
		ClientFingerprint: req.Fingerprint,
		Model:             s.Generator.Model(),
		CreatedAt:         start.UTC(),
	}
	var promptTokens, completionTokens int
	finish := func(outcome domain.Outcome, err error) {
		rec.Outcome = outcome
		rec.LatencyMS = s.Now().Sub(start).Milliseconds()
		observability.ObserveOutcome(string(outcome))
		attrs := []any{
			slog.String("outcome", string(outcome)),
			slog.Int("question_length", rec.QuestionLength),
			slog.Bool("wants_elaboration", rec.WantsElaboration),
			slog.Int("answer_length", rec.AnswerLength),
			slog.Int64("latency_ms", rec.LatencyMS),
		}
		if promptTokens > 0 {
			attrs = append(attrs,
				slog.Int("prompt_tokens", promptTokens),
				slog.Int("completion_tokens", completionTokens))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		switch outcome {
		case domain.OutcomeAnswered:
			lg.Info("ask completed", attrs...)
		case domain.OutcomeUpstreamError, domain.OutcomeInvalidResponse, domain.OutcomeInternalError:
			lg.Error("ask failed", attrs...)
		default:
			lg.Warn("ask rejected", attrs...)
		}
		s.record(ctx, rec)
	}

	q, err := s.Validator.Validate(ctx, req.Question)
	if err != nil {
		finish(domain.OutcomeInvalidQuestion, err)
		return domain.AnswerResult{}, err
	}
	rec.QuestionLength = utf8.RuneCountInString(q.String())

	if err := s.Limiter.Admit(ctx, req.ClientID, start); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			observability.RejectRateLimited()
			finish(domain.OutcomeRateLimited, err)
			return domain.AnswerResult{}, err
		}
		err = fmt.Errorf("%w: op=ask.admit: %v", domain.ErrInternal, err)
		finish(domain.OutcomeInternalError, err)
		return domain.AnswerResult{}, err
	}

	directive := s.Classifier.Directive(q, s.Policy.WordLimitDefault, s.Policy.WordLimitMax)
	rec.WantsElaboration = directive.WantsElaboration

	text, err := s.Composer.Compose(q.String(), s.Document.Text, directive.EffectiveLimit(), directive.WordLimitMax)
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrInternal, err)
		finish(domain.OutcomeInternalError, err)
		return domain.AnswerResult{}, err
	}
	if s.Tokens != nil {
		promptTokens = s.Tokens.Count(text)
		observability.ObservePromptTokens(promptTokens)
	}

	var answer string
	err = s.Upstream.Execute(ctx, "generate", func(mctx context.Context) error {
		var gerr error
		answer, gerr = s.Generator.GenerateAnswer(mctx, text, directive.TokenBudget(s.Policy.MaxOutputTokens), s.Policy.Temperature)
		return gerr
	})
	if err != nil {
		err = upstreamError(err)
		finish(domain.OutcomeUpstreamError, err)
		return domain.AnswerResult{}, err
	}
	if s.Tokens != nil {
		completionTokens = s.Tokens.Count(answer)
	}

	rec.AnswerLength = utf8.RuneCountInString(answer)
	if strings.TrimSpace(answer) == "" || rec.AnswerLength > s.Policy.MaxAnswerLength {
		err = fmt.Errorf("%w: answer length %d", domain.ErrSchemaInvalid, rec.AnswerLength)
		finish(domain.OutcomeInvalidResponse, err)
		return domain.AnswerResult{}, err
	}

	finish(domain.OutcomeAnswered, nil)
	return domain.AnswerResult{Answer: answer, Question: q.String()}, nil
}

// upstreamError maps a failed model call onto the upstream sentinels.
func upstreamError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrUpstreamTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
}

// record hands the interaction to the recorder in the background with its
// own timeout, detached from request cancellation.
func (s *AskService) record(ctx context.Context, in domain.Interaction) {
	if s.Recorder == nil {
		return
	}
	rctx := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		rctx, cancel := context.WithTimeout(rctx, s.Policy.RecordTimeout)
		defer cancel()
		if err := s.Recorder.Record(rctx, in); err != nil {
			obsctx.LoggerFromContext(rctx).Warn("interaction record failed",
				slog.String("request_id", in.RequestID), slog.Any("error", err))
		}
	}()
}

// Wait blocks until background records finish.
func (s *AskService) Wait() { s.pending.Wait() }
