// Command judgectl calls a judge server from the shell.
//
//	judgectl ping
//	judgectl judge <language> <source file> <test_case_id> [max_cpu_ms] [max_memory_bytes]
//	judgectl compile-spj <source file> <test_case_id> <spj_version>
//
// JUDGE_SERVER_URL and JUDGE_TOKEN are read from the environment or .env.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/judgeclient"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "judgectl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()
	v.SetDefault("JUDGE_SERVER_URL", "http://localhost:8080")
	v.SetDefault("SIGNATURE_WINDOW", "60s")
	_ = v.ReadInConfig()

	if len(args) == 0 {
		return fmt.Errorf("usage: judgectl ping | judge | compile-spj")
	}

	client, err := judgeclient.New(v.GetString("JUDGE_SERVER_URL"), v.GetString("JUDGE_TOKEN"), v.GetDuration("SIGNATURE_WINDOW"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var out any
	switch args[0] {
	case "ping":
		out, err = client.Ping(ctx)
	case "judge":
		var req *domain.JudgeRequest
		if req, err = judgeRequest(args[1:]); err != nil {
			return err
		}
		out, err = client.Judge(ctx, req)
	case "compile-spj":
		var req *domain.CompileSPJRequest
		if req, err = compileSPJRequest(args[1:]); err != nil {
			return err
		}
		out, err = client.CompileSPJ(ctx, req)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func judgeRequest(args []string) (*domain.JudgeRequest, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("usage: judgectl judge <language> <source file> <test_case_id> [max_cpu_ms] [max_memory_bytes]")
	}
	lang, ok := domain.Languages[args[0]]
	if !ok {
		return nil, fmt.Errorf("unknown language %q", args[0])
	}
	src, err := os.ReadFile(args[1])
	if err != nil {
		return nil, err
	}

	req := &domain.JudgeRequest{
		LanguageConfig: lang,
		Src:            string(src),
		MaxCPUTime:     1000,
		MaxMemory:      128 << 20,
		TestCaseID:     args[2],
	}
	if len(args) > 3 {
		if req.MaxCPUTime, err = strconv.ParseInt(args[3], 10, 64); err != nil {
			return nil, fmt.Errorf("max_cpu_ms: %w", err)
		}
	}
	if len(args) > 4 {
		if req.MaxMemory, err = strconv.ParseInt(args[4], 10, 64); err != nil {
			return nil, fmt.Errorf("max_memory_bytes: %w", err)
		}
	}
	return req, nil
}

func compileSPJRequest(args []string) (*domain.CompileSPJRequest, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("usage: judgectl compile-spj <source file> <test_case_id> <spj_version>")
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return nil, err
	}
	cfg := domain.CSPJCompile
	return &domain.CompileSPJRequest{
		Src:              string(src),
		TestCaseID:       args[1],
		SPJVersion:       args[2],
		SPJCompileConfig: &cfg,
	}, nil
}
