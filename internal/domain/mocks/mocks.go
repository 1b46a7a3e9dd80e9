// Package mocks holds testify mocks for the domain ports.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

// MockAnswerGenerator is a mock of domain.AnswerGenerator.
type MockAnswerGenerator struct{ mock.Mock }

// GenerateAnswer provides a mock function.
func (m *MockAnswerGenerator) GenerateAnswer(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	ret := m.Called(ctx, prompt, maxTokens, temperature)
	return ret.String(0), ret.Error(1)
}

// Model provides a mock function.
func (m *MockAnswerGenerator) Model() string {
	ret := m.Called()
	return ret.String(0)
}

// MockRateLimiter is a mock of domain.RateLimiter.
type MockRateLimiter struct{ mock.Mock }

// Admit provides a mock function.
func (m *MockRateLimiter) Admit(ctx context.Context, clientID string, now time.Time) error {
	ret := m.Called(ctx, clientID, now)
	return ret.Error(0)
}

// MockInteractionRecorder is a mock of domain.InteractionRecorder.
type MockInteractionRecorder struct{ mock.Mock }

// Record provides a mock function.
func (m *MockInteractionRecorder) Record(ctx context.Context, in domain.Interaction) error {
	ret := m.Called(ctx, in)
	return ret.Error(0)
}

var (
	_ domain.AnswerGenerator     = (*MockAnswerGenerator)(nil)
	_ domain.RateLimiter         = (*MockRateLimiter)(nil)
	_ domain.InteractionRecorder = (*MockInteractionRecorder)(nil)
)
