// Package testcase loads read-only test-case sets by id.
package testcase

import (
	"context"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// Store returns test-case sets ordered by case index.
type Store interface {
	// Load returns domain.KindTestCaseNotFound when the id is unknown.
	Load(ctx context.Context, id string) (*domain.TestCaseSet, error)
}
