// Package sandbox defines the execution primitive the judge runs every
// compile and test case through.
package sandbox

import (
	"context"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// Sandbox runs one program under resource limits and classifies the outcome.
//
// Execute returns a result with Result == SYSTEM_ERROR when the sandbox itself
// misbehaved, and a non-nil error only when the request could not be attempted.
type Sandbox interface {
	Execute(ctx context.Context, req *domain.ExecRequest) (*domain.ExecutionResult, error)
	Version() string
}
