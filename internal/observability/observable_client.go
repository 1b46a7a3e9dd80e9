package observability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/career-agent-api/internal/adapter/observability"
)

// ObservableClient runs calls to one outbound dependency under an adaptive
// deadline, a client span and Prometheus metrics. It never retries.
type ObservableClient struct {
	Dependency string
	Timeout    *AdaptiveTimeout

	tracer trace.Tracer
}

// NewObservableClient builds a client whose deadline moves within
// [minTimeout, maxTimeout].
func NewObservableClient(dependency string, minTimeout, maxTimeout time.Duration) *ObservableClient {
	return &ObservableClient{
		Dependency: dependency,
		Timeout:    NewAdaptiveTimeout(minTimeout, maxTimeout),
		tracer:     otel.Tracer("career-agent-api/upstream"),
	}
}

// Execute runs fn with a context bounded by the current deadline. The error
// from fn is returned unchanged; callers detect a cut-off call with
// errors.Is(err, context.DeadlineExceeded) or by their own mapping.
func (c *ObservableClient) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, c.Dependency+"."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	timeout := c.Timeout.Current()
	span.SetAttributes(
		attribute.String("dependency", c.Dependency),
		attribute.String("operation", operation),
		attribute.Float64("timeout.seconds", timeout.Seconds()),
	)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	err := fn(callCtx)
	took := time.Since(start)

	result := classifyCall(ctx, callCtx, err)
	c.Timeout.Observe(took, result)
	observability.ObserveUpstreamCall(c.Dependency, operation, string(result), took, c.Timeout.Current())
	span.SetAttributes(attribute.String("result", string(result)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result))
		LoggerFromContext(ctx).Warn("upstream call failed",
			slog.String("dependency", c.Dependency),
			slog.String("operation", operation),
			slog.String("result", string(result)),
			slog.Duration("timeout", timeout),
			slog.Duration("duration", took),
			slog.Any("error", err))
	}
	return err
}

// classifyCall separates a deadline this client imposed from a caller that
// went away.
func classifyCall(parent, call context.Context, err error) CallResult {
	switch {
	case err == nil:
		return CallSuccess
	case parent.Err() != nil:
		return CallCanceled
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return CallTimeout
	default:
		return CallFailure
	}
}
