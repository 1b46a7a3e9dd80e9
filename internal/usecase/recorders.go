package usecase

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/career-agent-api/internal/adapter/observability"
	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

// Sink is a named interaction recorder.
type Sink struct {
	Name     string
	Recorder domain.InteractionRecorder
}

// MultiRecorder fans one interaction out to every sink. A failing sink does
// not stop the others.
type MultiRecorder struct {
	sinks []Sink
}

// NewRecorder returns nil for no sinks, the sole recorder for one, and a
// MultiRecorder otherwise.
func NewRecorder(sinks ...Sink) domain.InteractionRecorder {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s.Recorder != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &MultiRecorder{sinks: kept}
}

// Record writes to all sinks and joins their errors.
func (m *MultiRecorder) Record(ctx domain.Context, in domain.Interaction) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Recorder.Record(ctx, in); err != nil {
			observability.RecordFailure(s.Name)
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
