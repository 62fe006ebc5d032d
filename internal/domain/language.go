package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CompileConfig describes how to build one source file into an executable.
// Times are milliseconds, memory is bytes.
type CompileConfig struct {
	SrcName        string `json:"src_name"`
	ExeName        string `json:"exe_name"`
	MaxCPUTime     int64  `json:"max_cpu_time"`
	MaxRealTime    int64  `json:"max_real_time"`
	MaxMemory      int64  `json:"max_memory"`
	CompileCommand string `json:"compile_command"`
}

// RunConfig describes how to run a compiled artifact.
type RunConfig struct {
	Command              string   `json:"command"`
	SeccompRule          string   `json:"seccomp_rule,omitempty"`
	Env                  []string `json:"env,omitempty"`
	MemoryLimitCheckOnly bool     `json:"memory_limit_check_only,omitempty"`
	CPUTimeFactor        float64  `json:"cpu_time_factor,omitempty"`
	RealTimeFactor       float64  `json:"real_time_factor,omitempty"`
	MemoryFactor         float64  `json:"memory_factor,omitempty"`
}

// LanguageProfile is supplied with every judge request and never persisted.
type LanguageProfile struct {
	Name    string         `json:"name,omitempty"`
	Compile *CompileConfig `json:"compile"`
	Run     RunConfig      `json:"run"`
}

// SPJConfig is the run profile of a special judge binary.
type SPJConfig struct {
	ExeName     string   `json:"exe_name,omitempty"`
	Command     string   `json:"command"`
	SeccompRule string   `json:"seccomp_rule,omitempty"`
	Env         []string `json:"env,omitempty"`
}

// Validate checks the compile profile before anything touches the filesystem.
func (c *CompileConfig) Validate() error {
	if c == nil {
		return NewError(KindInvalidRequest, "compile config is required")
	}
	if strings.TrimSpace(c.CompileCommand) == "" {
		return NewError(KindInvalidRequest, "compile_command is required")
	}
	if err := CheckLocalName(c.SrcName); err != nil {
		return NewError(KindInvalidRequest, "src_name %q: %v", c.SrcName, err)
	}
	if err := CheckLocalName(c.ExeName); err != nil {
		return NewError(KindInvalidRequest, "exe_name %q: %v", c.ExeName, err)
	}
	if c.MaxCPUTime < 0 || c.MaxRealTime < 0 || c.MaxMemory < 0 {
		return NewError(KindInvalidRequest, "compile limits must not be negative")
	}
	return nil
}

// ForSPJVersion returns a copy with {spj_version} expanded in the name templates.
func (c CompileConfig) ForSPJVersion(version string) CompileConfig {
	c.SrcName = strings.ReplaceAll(c.SrcName, "{spj_version}", version)
	c.ExeName = strings.ReplaceAll(c.ExeName, "{spj_version}", version)
	return c
}

// Validate checks the run profile.
func (r *RunConfig) Validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return NewError(KindInvalidRequest, "run command is required")
	}
	if r.CPUTimeFactor < 0 || r.RealTimeFactor < 0 || r.MemoryFactor < 0 {
		return NewError(KindInvalidRequest, "resource factors must not be negative")
	}
	return CheckSeccompRule(r.SeccompRule)
}

// Validate checks the special judge run profile.
func (s *SPJConfig) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return NewError(KindInvalidRequest, "spj_config.command is required")
	}
	return CheckSeccompRule(s.SeccompRule)
}

// SeccompRules are the jail configs shipped with the sandbox. An empty rule
// selects "default".
var SeccompRules = map[string]bool{
	"default": true,
	"c_cpp":   true,
	"general": true,
	"java":    true,
}

// CheckSeccompRule rejects rules that do not name a shipped jail config.
func CheckSeccompRule(rule string) error {
	if rule == "" || SeccompRules[rule] {
		return nil
	}
	return NewError(KindInvalidRequest, "unknown seccomp_rule %q", rule)
}

// CheckLocalName reports whether name stays inside the directory it is joined to.
func CheckLocalName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty name")
	}
	if !filepath.IsLocal(name) {
		return ErrUnsafePath
	}
	return nil
}

// CheckIdentifier validates ids that become a single directory name.
func CheckIdentifier(id string) error {
	if err := CheckLocalName(id); err != nil {
		return err
	}
	if strings.ContainsAny(id, `/\`) || id == "." {
		return ErrUnsafePath
	}
	return nil
}
