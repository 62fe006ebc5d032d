package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/spj"
)

// CompileSPJUsecase pre-builds a special judge so later judge calls hit the cache.
type CompileSPJUsecase struct {
	spj    *spj.Cache
	logger *zap.Logger
}

// NewCompileSPJUsecase creates a new CompileSPJUsecase.
func NewCompileSPJUsecase(spjCache *spj.Cache, logger *zap.Logger) *CompileSPJUsecase {
	return &CompileSPJUsecase{spj: spjCache, logger: logger}
}

// Execute compiles req.Src for (test_case_id, spj_version) unless the binary
// already exists. Compilation failures are always SPJCompileError.
func (uc *CompileSPJUsecase) Execute(ctx context.Context, req *domain.CompileSPJRequest) (*domain.CompileSPJResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exePath, err := uc.spj.Resolve(ctx, req.TestCaseID, req.SPJVersion, req.Src, *req.SPJCompileConfig)
	if err != nil {
		uc.logger.Info("compile_spj failed",
			zap.String("test_case_id", req.TestCaseID),
			zap.String("spj_version", req.SPJVersion),
			zap.String("error_kind", string(domain.KindOf(err))),
		)
		return nil, err
	}

	return &domain.CompileSPJResponse{ExePath: exePath}, nil
}
