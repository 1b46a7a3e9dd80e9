// Package tokencount estimates token counts for prompts and answers.
//
// Gemini does not publish a local tokenizer, so counts use the cl100k_base
// BPE from tiktoken-go as an approximation. The BPE ranks are embedded via
// the offline loader, so counting never touches the network.
package tokencount

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const encodingName = "cl100k_base"

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter is safe for concurrent use. The encoding is loaded on first use.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewCounter creates a counter.
func NewCounter() *Counter { return &Counter{} }

// DefaultCounter is shared by callers that do not need their own instance.
var DefaultCounter = NewCounter()

func (c *Counter) encoding() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(encodingName)
		if c.err != nil {
			slog.Warn("token encoding unavailable, using estimate", slog.Any("error", c.err))
		}
	})
	return c.enc, c.err
}

// Count returns the token count of text. When the encoding cannot be loaded
// it falls back to roughly four characters per token.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := c.encoding()
	if err != nil {
		return estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func estimate(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n == 0 {
		return 1
	}
	return n
}

// Count uses DefaultCounter.
func Count(text string) int { return DefaultCounter.Count(text) }
