package usecase

import (
	"context"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/health"
)

// PingUsecase reports host health to the caller.
type PingUsecase struct {
	reporter health.Reporter
}

// NewPingUsecase creates a new PingUsecase.
func NewPingUsecase(reporter health.Reporter) *PingUsecase {
	return &PingUsecase{reporter: reporter}
}

func (uc *PingUsecase) Execute(ctx context.Context) (*domain.HostStatus, error) {
	st, err := uc.reporter.Status(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindSystemError, err)
	}
	return st, nil
}
