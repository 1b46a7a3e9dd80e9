package question

import (
	"strings"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

// DefaultElaborationKeywords signal that the recruiter wants a longer answer.
var DefaultElaborationKeywords = []string{
	"more detail",
	"more information",
	"elaborate",
	"elaboration",
	"tell me more",
	"explain more",
	"longer",
	"comprehensive",
	"detailed",
	"in depth",
	"expand",
	"further",
	"additional",
}

// Classifier detects the "wants elaboration" signal by plain substring
// search. There is no stemming or negation handling: "don't elaborate"
// still matches.
type Classifier struct {
	keywords []string
}

// NewClassifier builds a Classifier. An empty list falls back to
// DefaultElaborationKeywords.
func NewClassifier(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultElaborationKeywords
	}
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Classifier{keywords: kw}
}

// Classify reports whether q asks for elaboration.
func (c *Classifier) Classify(q string) bool {
	lower := strings.ToLower(q)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Directive computes the word-limit parameters for q.
func (c *Classifier) Directive(q domain.Question, wordLimitDefault, wordLimitMax int) domain.PromptDirective {
	return domain.PromptDirective{
		WordLimitDefault: wordLimitDefault,
		WordLimitMax:     wordLimitMax,
		WantsElaboration: c.Classify(q.String()),
	}
}
