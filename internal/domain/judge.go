package domain

import "time"

// ResultCode is the sandbox's classification of one execution.
type ResultCode string

const (
	ResultSuccess               ResultCode = "SUCCESS"
	ResultCPUTimeLimitExceeded  ResultCode = "CPU_TIME_LIMIT_EXCEEDED"
	ResultRealTimeLimitExceeded ResultCode = "REAL_TIME_LIMIT_EXCEEDED"
	ResultMemoryLimitExceeded   ResultCode = "MEMORY_LIMIT_EXCEEDED"
	ResultRuntimeError          ResultCode = "RUNTIME_ERROR"
	ResultSystemError           ResultCode = "SYSTEM_ERROR"
)

// Verdict is the judgement of one test case or of a whole submission.
type Verdict string

const (
	VerdictAccepted              Verdict = "ACCEPTED"
	VerdictWrongAnswer           Verdict = "WRONG_ANSWER"
	VerdictCPUTimeLimitExceeded  Verdict = "CPU_TIME_LIMIT_EXCEEDED"
	VerdictRealTimeLimitExceeded Verdict = "REAL_TIME_LIMIT_EXCEEDED"
	VerdictMemoryLimitExceeded   Verdict = "MEMORY_LIMIT_EXCEEDED"
	VerdictRuntimeError          Verdict = "RUNTIME_ERROR"
	VerdictCompileError          Verdict = "COMPILE_ERROR"
	VerdictSPJCompileError       Verdict = "SPJ_COMPILE_ERROR"
	VerdictSystemError           Verdict = "SYSTEM_ERROR"
)

// VerdictFor maps a non-success sandbox classification onto a case verdict.
func VerdictFor(code ResultCode) Verdict {
	switch code {
	case ResultSuccess:
		return VerdictAccepted
	case ResultCPUTimeLimitExceeded:
		return VerdictCPUTimeLimitExceeded
	case ResultRealTimeLimitExceeded:
		return VerdictRealTimeLimitExceeded
	case ResultMemoryLimitExceeded:
		return VerdictMemoryLimitExceeded
	case ResultRuntimeError:
		return VerdictRuntimeError
	default:
		return VerdictSystemError
	}
}

// ExecRequest is one invocation of the sandbox primitive.
// Zero limits mean unlimited.
type ExecRequest struct {
	SubmissionID   string
	ExePath        string
	Args           []string
	Env            []string
	WorkDir        string
	StdinPath      string
	MaxCPUTimeMs   int64
	MaxRealTimeMs  int64
	MaxMemoryBytes int64
	MaxProcesses   int
	MaxOutputBytes int64
	SeccompRule    string
}

// ExecutionResult is what the sandbox reports back for one invocation.
type ExecutionResult struct {
	CPUTimeMs   int64      `json:"cpu_time"`
	RealTimeMs  int64      `json:"real_time"`
	MemoryBytes int64      `json:"memory"`
	ExitCode    int        `json:"exit_code"`
	Signal      int        `json:"signal"`
	Result      ResultCode `json:"result"`
	Stdout      string     `json:"-"`
	Stderr      string     `json:"-"`
}

// JudgeRequest is the body of a judge call.
type JudgeRequest struct {
	LanguageConfig   LanguageProfile `json:"language_config"`
	SubmissionID     string          `json:"submission_id,omitempty"`
	Src              string          `json:"src"`
	MaxCPUTime       int64           `json:"max_cpu_time"`
	MaxMemory        int64           `json:"max_memory"`
	TestCaseID       string          `json:"test_case_id"`
	SPJVersion       string          `json:"spj_version,omitempty"`
	SPJConfig        *SPJConfig      `json:"spj_config,omitempty"`
	SPJCompileConfig *CompileConfig  `json:"spj_compile_config,omitempty"`
	SPJSrc           string          `json:"spj_src,omitempty"`
	Output           bool            `json:"output,omitempty"`
}

// HasSPJ reports whether the request declares a special judge.
func (r *JudgeRequest) HasSPJ() bool {
	return r.SPJVersion != "" || r.SPJConfig != nil
}

// Validate rejects malformed judge requests before any filesystem work.
func (r *JudgeRequest) Validate() error {
	if r.SubmissionID != "" {
		if err := CheckIdentifier(r.SubmissionID); err != nil {
			return NewError(KindInvalidRequest, "submission_id %q: %v", r.SubmissionID, err)
		}
	}
	if err := CheckIdentifier(r.TestCaseID); err != nil {
		return NewError(KindInvalidRequest, "test_case_id %q: %v", r.TestCaseID, err)
	}
	if r.MaxCPUTime <= 0 {
		return NewError(KindInvalidRequest, "max_cpu_time must be positive")
	}
	if r.MaxMemory <= 0 {
		return NewError(KindInvalidRequest, "max_memory must be positive")
	}
	if err := r.LanguageConfig.Compile.Validate(); err != nil {
		return err
	}
	if err := r.LanguageConfig.Run.Validate(); err != nil {
		return err
	}
	if !r.HasSPJ() {
		return nil
	}
	if r.SPJVersion == "" || r.SPJConfig == nil || r.SPJCompileConfig == nil {
		return NewError(KindInvalidRequest, "spj_version, spj_config and spj_compile_config are required together")
	}
	if err := CheckIdentifier(r.SPJVersion); err != nil {
		return NewError(KindInvalidRequest, "spj_version %q: %v", r.SPJVersion, err)
	}
	if err := r.SPJConfig.Validate(); err != nil {
		return err
	}
	cfg := r.SPJCompileConfig.ForSPJVersion(r.SPJVersion)
	return cfg.Validate()
}

// CompileSPJRequest is the body of a compile_spj call.
type CompileSPJRequest struct {
	Src              string         `json:"src"`
	SPJVersion       string         `json:"spj_version"`
	SPJCompileConfig *CompileConfig `json:"spj_compile_config"`
	TestCaseID       string         `json:"test_case_id"`
}

// Validate rejects malformed compile_spj requests.
func (r *CompileSPJRequest) Validate() error {
	if err := CheckIdentifier(r.TestCaseID); err != nil {
		return NewError(KindInvalidRequest, "test_case_id %q: %v", r.TestCaseID, err)
	}
	if err := CheckIdentifier(r.SPJVersion); err != nil {
		return NewError(KindInvalidRequest, "spj_version %q: %v", r.SPJVersion, err)
	}
	if r.SPJCompileConfig == nil {
		return NewError(KindInvalidRequest, "spj_compile_config is required")
	}
	cfg := r.SPJCompileConfig.ForSPJVersion(r.SPJVersion)
	return cfg.Validate()
}

// CompileSPJResponse is the result of a compile_spj call.
type CompileSPJResponse struct {
	ExePath string `json:"exe_path"`
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	TestCase   int        `json:"test_case"`
	Verdict    Verdict    `json:"verdict"`
	Result     ResultCode `json:"result"`
	CPUTimeMs  int64      `json:"cpu_time"`
	RealTimeMs int64      `json:"real_time"`
	Memory     int64      `json:"memory"`
	ExitCode   int        `json:"exit_code"`
	Signal     int        `json:"signal"`
	Output     *string    `json:"output,omitempty"`
}

// JudgeSummary aggregates the per-case results.
type JudgeSummary struct {
	Verdict        Verdict `json:"verdict"`
	MaxCPUTimeMs   int64   `json:"max_cpu_time"`
	MaxRealTimeMs  int64   `json:"max_real_time"`
	MaxMemoryBytes int64   `json:"max_memory"`
	Passed         int     `json:"passed"`
	Total          int     `json:"total"`
}

// JudgeResponse is the body of a successful judge call.
type JudgeResponse struct {
	SubmissionID string       `json:"submission_id"`
	Verdict      Verdict      `json:"verdict"`
	Results      []CaseResult `json:"results"`
	Output       *string      `json:"output,omitempty"`
	Summary      JudgeSummary `json:"summary"`
}

// TestCase is one read-only input/expected-output pair.
type TestCase struct {
	Index    int
	Input    []byte
	Expected []byte
}

// TestCaseSet is an ordered collection of test cases for one problem.
type TestCaseSet struct {
	ID    string
	SPJ   bool
	Cases []TestCase
}

// HostStatus is the body of a ping response.
type HostStatus struct {
	Hostname      string  `json:"hostname"`
	CPU           float64 `json:"cpu"`
	CPUCore       int     `json:"cpu_core"`
	Memory        float64 `json:"memory"`
	JudgerVersion string  `json:"judger_version"`
}

// JudgeEvent is published after a judge call finishes.
type JudgeEvent struct {
	SubmissionID string        `json:"submission_id"`
	TestCaseID   string        `json:"test_case_id"`
	Language     string        `json:"language,omitempty"`
	Verdict      Verdict       `json:"verdict"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
	Summary      *JudgeSummary `json:"summary,omitempty"`
	Hostname     string        `json:"hostname"`
	FinishedAt   time.Time     `json:"finished_at"`
}
