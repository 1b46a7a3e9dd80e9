// Package gemini implements domain.AnswerGenerator on top of the Google
// GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/fairyhunter13/career-agent-api/internal/adapter/observability"
	"github.com/fairyhunter13/career-agent-api/internal/config"
	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

const provider = "gemini"

// Client calls one model chosen at startup. No retries happen per request.
type Client struct {
	client       *genai.Client
	model        string
	candidates   []string
	probeTimeout time.Duration
}

// Options configures a Client. Models is the ordered fallback chain.
type Options struct {
	APIKey       string
	BaseURL      string
	Models       []string
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
}

// OptionsFromConfig maps application config onto client options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		APIKey:       cfg.GeminiAPIKey,
		BaseURL:      cfg.GeminiBaseURL,
		Models:       cfg.GeminiModels,
		ProbeTimeout: cfg.ModelProbeTimeout,
	}
}

// New builds the SDK client. The HTTP transport is wrapped with otelhttp so
// model calls show up as child spans.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("op=gemini.New: api key is required")
	}
	if len(opts.Models) == 0 {
		return nil, fmt.Errorf("op=gemini.New: at least one model is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc = &http.Client{
		Transport:     otelhttp.NewTransport(base),
		CheckRedirect: hc.CheckRedirect,
		Jar:           hc.Jar,
		Timeout:       hc.Timeout,
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("op=gemini.New: %w", err)
	}

	probe := opts.ProbeTimeout
	if probe <= 0 {
		probe = 5 * time.Second
	}
	return &Client{
		client:       client,
		model:        opts.Models[0],
		candidates:   append([]string(nil), opts.Models...),
		probeTimeout: probe,
	}, nil
}

var _ domain.AnswerGenerator = (*Client)(nil)

// Model names the selected model.
func (c *Client) Model() string { return c.model }

// SelectModel walks the fallback chain once and keeps the first model the
// API reports as available. Transient probe failures are retried with
// backoff inside probeTimeout; a model the API rejects is skipped at once.
// When nothing answers, the last candidate is kept so startup never blocks.
func (c *Client) SelectModel(ctx context.Context) string {
	for _, name := range c.candidates {
		if err := c.probe(ctx, name); err != nil {
			slog.Warn("gemini model unavailable", slog.String("model", name), slog.Any("error", err))
			continue
		}
		c.model = name
		slog.Info("gemini model selected", slog.String("model", name))
		return name
	}
	c.model = c.candidates[len(c.candidates)-1]
	slog.Warn("no gemini model confirmed, using last candidate", slog.String("model", c.model))
	return c.model
}

func (c *Client) probe(ctx context.Context, name string) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = time.Second
	expo.MaxElapsedTime = c.probeTimeout

	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	op := func() error {
		_, err := c.client.Models.Get(pctx, name, nil)
		if err == nil {
			return nil
		}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(expo, pctx))
}

// GenerateAnswer sends prompt as a single user turn. Deadline expiry maps to
// domain.ErrUpstreamTimeout and every other failure to domain.ErrUpstream.
func (c *Client) GenerateAnswer(ctx domain.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	start := time.Now()
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	observability.AIRequestsTotal.WithLabelValues(provider, "generate").Inc()
	observability.AIRequestDuration.WithLabelValues(provider, "generate").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: op=gemini.GenerateAnswer: %v", domain.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("%w: op=gemini.GenerateAnswer: %v", domain.ErrUpstream, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: op=gemini.GenerateAnswer: nil response", domain.ErrUpstream)
	}
	return resp.Text(), nil
}
