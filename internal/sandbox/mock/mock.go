package mock

import (
	"context"
	"sync"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/sandbox"
)

var _ sandbox.Sandbox = (*Sandbox)(nil)

// Sandbox is a test double for sandbox.Sandbox.
type Sandbox struct {
	mu sync.Mutex

	ExecuteFn func(ctx context.Context, req *domain.ExecRequest) (*domain.ExecutionResult, error)
	VersionFn func() string

	// Recorded calls for assertions.
	ExecuteCalls []domain.ExecRequest
}

// Execute records the request and returns a successful result by default.
func (m *Sandbox) Execute(ctx context.Context, req *domain.ExecRequest) (*domain.ExecutionResult, error) {
	m.mu.Lock()
	m.ExecuteCalls = append(m.ExecuteCalls, *req)
	m.mu.Unlock()
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, req)
	}
	return &domain.ExecutionResult{
		Result:     domain.ResultSuccess,
		CPUTimeMs:  1,
		RealTimeMs: 2,
	}, nil
}

func (m *Sandbox) Version() string {
	if m.VersionFn != nil {
		return m.VersionFn()
	}
	return "mock-1.0.0"
}

// Calls returns a snapshot of the recorded requests.
func (m *Sandbox) Calls() []domain.ExecRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ExecRequest(nil), m.ExecuteCalls...)
}
