package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstream        = errors.New("upstream error")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// Question is a trimmed question that passed validation.
// Only the question validator constructs it from untrusted input.
type Question string

// String returns the question text.
func (q Question) String() string { return string(q) }

// Document is the grounding text the model is restricted to.
// It is loaded once at start and never mutated.
type Document struct {
	Text   string
	Source string
}

// Empty reports whether the document carries no text.
func (d Document) Empty() bool { return d.Text == "" }

// PromptDirective carries the word-limit parameters computed per request.
type PromptDirective struct {
	WordLimitDefault int
	WordLimitMax     int
	WantsElaboration bool
}

// EffectiveLimit is the word limit the answer should target.
func (p PromptDirective) EffectiveLimit() int {
	if p.WantsElaboration {
		return p.WordLimitMax
	}
	return p.WordLimitDefault
}

// TokenBudget converts the effective word limit into an output token cap,
// never exceeding ceiling.
func (p PromptDirective) TokenBudget(ceiling int) int {
	budget := p.EffectiveLimit()*2 + 64
	if budget < 256 {
		budget = 256
	}
	if ceiling > 0 && budget > ceiling {
		budget = ceiling
	}
	return budget
}

// AnswerResult is the success payload returned to the caller.
type AnswerResult struct {
	Answer   string `json:"answer"`
	Question string `json:"question"`
}

// Outcome enumerates how an ask request ended.
type Outcome string

const (
	OutcomeAnswered        Outcome = "answered"
	OutcomeInvalidQuestion Outcome = "invalid_question"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeUpstreamError   Outcome = "upstream_error"
	OutcomeInvalidResponse Outcome = "invalid_response"
	OutcomeInternalError   Outcome = "internal_error"
)

// Interaction is the audit record of one ask request.
// It never carries the question or answer text, only their sizes.
type Interaction struct {
	RequestID         string    `json:"request_id"`
	ClientFingerprint string    `json:"client_fingerprint"`
	QuestionLength    int       `json:"question_length"`
	WantsElaboration  bool      `json:"wants_elaboration"`
	Outcome           Outcome   `json:"outcome"`
	AnswerLength      int       `json:"answer_length"`
	Model             string    `json:"model"`
	LatencyMS         int64     `json:"latency_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

// Ports

// AnswerGenerator is the external model collaborator.
type AnswerGenerator interface {
	GenerateAnswer(ctx Context, prompt string, maxTokens int, temperature float32) (string, error)
	// Model names the model selected at startup.
	Model() string
}

// RateLimiter admits or rejects a request for a client at a point in time.
type RateLimiter interface {
	Admit(ctx Context, clientID string, now time.Time) error
}

// InteractionRecorder persists or publishes interaction records.
type InteractionRecorder interface {
	Record(ctx Context, in Interaction) error
}

// Context is an alias to context.Context kept for port signatures.
type Context = context.Context
