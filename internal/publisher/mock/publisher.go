package mock

import (
	"context"
	"sync"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher records published judge events.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*domain.JudgeEvent
	PublishFn func(ctx context.Context, event *domain.JudgeEvent) error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event *domain.JudgeEvent) error {
	m.mu.Lock()
	m.Published = append(m.Published, event)
	m.mu.Unlock()
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event)
	}
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns a snapshot of what was published.
func (m *MockPublisher) Events() []*domain.JudgeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.JudgeEvent(nil), m.Published...)
}
