package usecase

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/compiler"
	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/judge"
	"github.com/Harsh-BH/sentinel-judge/internal/metrics"
	"github.com/Harsh-BH/sentinel-judge/internal/publisher"
	"github.com/Harsh-BH/sentinel-judge/internal/spj"
	"github.com/Harsh-BH/sentinel-judge/internal/testcase"
	"github.com/Harsh-BH/sentinel-judge/internal/workspace"
)

// JudgeUsecase orchestrates one judge call: workspace, compile, special
// judge, test cases, verdict.
type JudgeUsecase struct {
	workspaces *workspace.Manager
	compiler   *compiler.Compiler
	spj        *spj.Cache
	cases      testcase.Store
	engine     *judge.Engine
	publisher  publisher.Publisher
	hostname   string
	logger     *zap.Logger
}

// NewJudgeUsecase creates a new JudgeUsecase.
func NewJudgeUsecase(
	workspaces *workspace.Manager,
	comp *compiler.Compiler,
	spjCache *spj.Cache,
	cases testcase.Store,
	engine *judge.Engine,
	pub publisher.Publisher,
	logger *zap.Logger,
) *JudgeUsecase {
	hostname, _ := os.Hostname()
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &JudgeUsecase{
		workspaces: workspaces,
		compiler:   comp,
		spj:        spjCache,
		cases:      cases,
		engine:     engine,
		publisher:  pub,
		hostname:   hostname,
		logger:     logger,
	}
}

// Execute judges one submission. Errors are *domain.JudgeError values; a
// finished judgement of any verdict is a nil error.
func (uc *JudgeUsecase) Execute(ctx context.Context, req *domain.JudgeRequest) (resp *domain.JudgeResponse, err error) {
	start := time.Now()

	// Step 1: Assign an id when the caller did not supply one
	if req.SubmissionID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, domain.WrapError(domain.KindSystemError, err)
		}
		req.SubmissionID = id.String()
	}

	log := uc.logger.With(
		zap.String("submission_id", req.SubmissionID),
		zap.String("test_case_id", req.TestCaseID),
	)

	defer func() {
		uc.finish(ctx, log, req, resp, err, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Step 2: Allocate the workspace
	ws, err := uc.workspaces.Acquire(req.SubmissionID)
	if err != nil {
		return nil, err
	}
	defer ws.Release()

	// Step 3: Compile the submission
	compileStart := time.Now()
	exePath, err := uc.compiler.Compile(ctx, *req.LanguageConfig.Compile, req.Src, ws.Path)
	metrics.CompileDuration.WithLabelValues("submission", compileOutcome(err)).Observe(time.Since(compileStart).Seconds())
	if err != nil {
		log.Info("Submission failed to compile", zap.String("error_kind", string(domain.KindOf(err))))
		return nil, err
	}

	// Step 4: Resolve the special judge
	var spjRun *judge.SPJRun
	if req.HasSPJ() {
		spjExe, err := uc.spj.Resolve(ctx, req.TestCaseID, req.SPJVersion, req.SPJSrc, *req.SPJCompileConfig)
		if err != nil {
			return nil, err
		}
		spjRun = &judge.SPJRun{ExePath: spjExe, Config: *req.SPJConfig}
	}

	// Step 5: Load the test cases
	set, err := uc.cases.Load(ctx, req.TestCaseID)
	if err != nil {
		return nil, err
	}
	if set.SPJ && spjRun == nil {
		return nil, domain.NewError(domain.KindInvalidRequest, "test case %s requires a special judge", req.TestCaseID)
	}
	if len(set.Cases) == 0 {
		return nil, domain.NewError(domain.KindSystemError, "test case %s has no cases", req.TestCaseID)
	}

	// Step 6: Run every case
	out, err := uc.engine.Run(ctx, &judge.RunRequest{
		SubmissionID:   req.SubmissionID,
		WorkDir:        ws.Path,
		ExePath:        exePath,
		Run:            req.LanguageConfig.Run,
		MaxCPUTimeMs:   req.MaxCPUTime,
		MaxMemoryBytes: req.MaxMemory,
		Cases:          set.Cases,
		SPJ:            spjRun,
		CaptureOutput:  req.Output,
	})
	if err != nil {
		return nil, err
	}

	return &domain.JudgeResponse{
		SubmissionID: req.SubmissionID,
		Verdict:      out.Summary.Verdict,
		Results:      out.Results,
		Output:       out.CapturedOutput,
		Summary:      out.Summary,
	}, nil
}

// finish records metrics and publishes the judge event. A publish failure
// never changes the caller's result.
func (uc *JudgeUsecase) finish(ctx context.Context, log *zap.Logger, req *domain.JudgeRequest, resp *domain.JudgeResponse, err error, elapsed time.Duration) {
	language := req.LanguageConfig.Name
	if language == "" {
		language = "custom"
	}
	metrics.JudgeDuration.WithLabelValues(language).Observe(elapsed.Seconds())

	event := &domain.JudgeEvent{
		SubmissionID: req.SubmissionID,
		TestCaseID:   req.TestCaseID,
		Language:     req.LanguageConfig.Name,
		Hostname:     uc.hostname,
		FinishedAt:   time.Now().UTC(),
	}

	if err != nil {
		kind := domain.KindOf(err)
		event.ErrorKind = kind
		event.Verdict = verdictForError(kind)
		metrics.JudgeTotal.WithLabelValues(string(kind)).Inc()
		if kind == domain.KindSystemError {
			log.Error("Judge failed", zap.Error(err))
		}
	} else {
		event.Verdict = resp.Verdict
		event.Summary = &resp.Summary
		metrics.JudgeTotal.WithLabelValues(string(resp.Verdict)).Inc()
		log.Info("Judge finished",
			zap.String("verdict", string(resp.Verdict)),
			zap.Int("passed", resp.Summary.Passed),
			zap.Int("total", resp.Summary.Total),
			zap.Duration("elapsed", elapsed),
		)
	}

	// Requests rejected before a workspace was touched are not announced.
	if err != nil && domain.KindOf(err) == domain.KindInvalidRequest {
		return
	}
	if pubErr := uc.publisher.Publish(context.WithoutCancel(ctx), event); pubErr != nil {
		log.Warn("Failed to publish judge event", zap.Error(pubErr))
	}
}

func verdictForError(kind domain.ErrorKind) domain.Verdict {
	switch kind {
	case domain.KindCompileError:
		return domain.VerdictCompileError
	case domain.KindSPJCompileError:
		return domain.VerdictSPJCompileError
	default:
		return domain.VerdictSystemError
	}
}

func compileOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
