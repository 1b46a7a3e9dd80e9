// Package question validates recruiter questions and classifies their intent.
package question

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
	obsctx "github.com/fairyhunter13/career-agent-api/internal/observability"
)

// Kind identifies which validation rule rejected a question.
type Kind string

const (
	KindEmptyOrWrongType  Kind = "EMPTY_OR_WRONG_TYPE"
	KindTooShort          Kind = "TOO_SHORT"
	KindTooLong           Kind = "TOO_LONG"
	KindInvalidCharacters Kind = "INVALID_CHARACTERS"
	KindSuspiciousPattern Kind = "SUSPICIOUS_PATTERN"
)

// ValidationError is returned for every rejected question. Message is safe
// to show to the caller.
type ValidationError struct {
	Kind    Kind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap lets callers match domain.ErrInvalidArgument.
func (e *ValidationError) Unwrap() error { return domain.ErrInvalidArgument }

// Letters, digits, ASCII whitespace and an explicit punctuation set.
var allowedChars = regexp.MustCompile(`^[a-zA-Z0-9\t\n\v\f\r ?.,!\-:;()\[\]{}'"/@#$%^&*+=_|\\~` + "`" + `<>]+$`)

// suspiciousPatterns is a substring deny-list, not a parser. Legitimate text
// such as "Union Pacific" is rejected too.
var suspiciousPatterns = []string{";", "--", "/*", "*/", "xp_", "sp_", "exec", "union", "select"}

// Validator checks question well-formedness.
type Validator struct {
	minLength int
	maxLength int
}

// NewValidator builds a Validator with inclusive rune length bounds.
func NewValidator(minLength, maxLength int) *Validator {
	if minLength < 1 {
		minLength = 1
	}
	if maxLength < minLength {
		maxLength = minLength
	}
	return &Validator{minLength: minLength, maxLength: maxLength}
}

// Validate returns the trimmed question or a *ValidationError. The checks run
// in a fixed order and the first failure wins.
func (v *Validator) Validate(ctx context.Context, raw any) (domain.Question, error) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", &ValidationError{Kind: KindEmptyOrWrongType, Message: "Question must be a non-empty string"}
	}
	s = strings.TrimSpace(s)

	n := utf8.RuneCountInString(s)
	if n < v.minLength {
		return "", &ValidationError{Kind: KindTooShort, Message: fmt.Sprintf("Question must be at least %d characters", v.minLength)}
	}
	if n > v.maxLength {
		return "", &ValidationError{Kind: KindTooLong, Message: fmt.Sprintf("Question must be no more than %d characters", v.maxLength)}
	}
	if !allowedChars.MatchString(s) {
		return "", &ValidationError{Kind: KindInvalidCharacters, Message: "Question contains invalid characters"}
	}

	lower := strings.ToLower(s)
	for _, p := range suspiciousPatterns {
		if strings.Contains(lower, p) {
			obsctx.LoggerFromContext(ctx).Warn("suspicious pattern in question",
				slog.String("pattern", p))
			return "", &ValidationError{Kind: KindSuspiciousPattern, Message: "Invalid input detected"}
		}
	}
	return domain.Question(s), nil
}
