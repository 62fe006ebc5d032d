package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// Config holds all configuration for the judge server.
type Config struct {
	Server    ServerConfig
	Judge     JudgeConfig
	Workspace WorkspaceConfig
	Sandbox   SandboxConfig
	Metrics   MetricsConfig
	Database  DatabaseConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Port         int           `mapstructure:"API_PORT"`
	ReadTimeout  time.Duration `mapstructure:"API_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"API_WRITE_TIMEOUT"`
	MaxBodyBytes int64         `mapstructure:"API_MAX_BODY_BYTES"`
	GinMode      string        `mapstructure:"GIN_MODE"`
	LogLevel     string        `mapstructure:"LOG_LEVEL"`
}

type JudgeConfig struct {
	Token           string        `mapstructure:"JUDGE_TOKEN"`
	TestCaseBase    string        `mapstructure:"JUDGE_TEST_CASE_BASE"`
	PoolSize        int           `mapstructure:"JUDGE_POOL_SIZE"`
	SignatureWindow time.Duration `mapstructure:"SIGNATURE_WINDOW"`
}

type WorkspaceConfig struct {
	Base          string        `mapstructure:"JUDGE_WORKSPACE_BASE"`
	Retention     string        `mapstructure:"WORKSPACE_RETENTION"`
	MaxAge        time.Duration `mapstructure:"WORKSPACE_MAX_AGE"`
	MaxCount      int           `mapstructure:"WORKSPACE_MAX_COUNT"`
	SweepInterval time.Duration `mapstructure:"WORKSPACE_SWEEP_INTERVAL"`
}

type SandboxConfig struct {
	NsjailPath     string `mapstructure:"WORKER_NSJAIL_PATH"`
	ConfigDir      string `mapstructure:"WORKER_SANDBOX_CONFIG_DIR"`
	MaxProcesses   int    `mapstructure:"SANDBOX_MAX_PROCESSES"`
	MaxOutputBytes int64  `mapstructure:"SANDBOX_MAX_OUTPUT_BYTES"`
	RunUID         int    `mapstructure:"SANDBOX_RUN_UID"`
	RunGID         int    `mapstructure:"SANDBOX_RUN_GID"`
}

type MetricsConfig struct {
	Port int `mapstructure:"METRICS_PORT"`
}

// DatabaseConfig selects the PostgreSQL test-case store. Empty URL means the
// filesystem store under JUDGE_TEST_CASE_BASE.
type DatabaseConfig struct {
	URL string `mapstructure:"DATABASE_URL"`
}

// RabbitMQConfig enables judge event publishing when URL is set.
type RabbitMQConfig struct {
	URL string `mapstructure:"RABBITMQ_URL"`
}

// RedisConfig enables the shared replay guard and SPJ lock when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"REDIS_URL"`
}

// Load reads configuration from environment variables and the .env file.
// A missing JUDGE_TOKEN is an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("API_PORT", 8080)
	v.SetDefault("API_READ_TIMEOUT", "10s")
	v.SetDefault("API_WRITE_TIMEOUT", "10m")
	v.SetDefault("API_MAX_BODY_BYTES", 16<<20)
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JUDGE_TOKEN", "")
	v.SetDefault("JUDGE_TEST_CASE_BASE", "/test_case")
	v.SetDefault("JUDGE_POOL_SIZE", runtime.NumCPU())
	v.SetDefault("SIGNATURE_WINDOW", "60s")
	v.SetDefault("JUDGE_WORKSPACE_BASE", "/judger/run")
	v.SetDefault("WORKSPACE_RETENTION", "retain")
	v.SetDefault("WORKSPACE_MAX_AGE", "24h")
	v.SetDefault("WORKSPACE_MAX_COUNT", 1000)
	v.SetDefault("WORKSPACE_SWEEP_INTERVAL", "10m")
	v.SetDefault("WORKER_NSJAIL_PATH", "/usr/bin/nsjail")
	v.SetDefault("WORKER_SANDBOX_CONFIG_DIR", "./sandbox/nsjail")
	v.SetDefault("SANDBOX_MAX_PROCESSES", 64)
	v.SetDefault("SANDBOX_MAX_OUTPUT_BYTES", 16<<20)
	v.SetDefault("SANDBOX_RUN_UID", 65534)
	v.SetDefault("SANDBOX_RUN_GID", 65534)
	v.SetDefault("METRICS_PORT", 9090)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_URL", "")

	// Attempt to read .env file (non-fatal if missing)
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(&cfg.Server); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	if err := v.Unmarshal(&cfg.Judge); err != nil {
		return nil, fmt.Errorf("judge config: %w", err)
	}
	if err := v.Unmarshal(&cfg.Workspace); err != nil {
		return nil, fmt.Errorf("workspace config: %w", err)
	}
	if err := v.Unmarshal(&cfg.Sandbox); err != nil {
		return nil, fmt.Errorf("sandbox config: %w", err)
	}
	cfg.Metrics.Port = v.GetInt("METRICS_PORT")
	cfg.Database.URL = v.GetString("DATABASE_URL")
	cfg.RabbitMQ.URL = v.GetString("RABBITMQ_URL")
	cfg.Redis.URL = v.GetString("REDIS_URL")

	if cfg.Judge.Token == "" {
		return nil, domain.ErrMissingToken
	}
	if cfg.Judge.PoolSize <= 0 {
		cfg.Judge.PoolSize = runtime.NumCPU()
	}
	switch cfg.Workspace.Retention {
	case "retain", "cleanup":
	default:
		return nil, fmt.Errorf("WORKSPACE_RETENTION must be retain or cleanup, got %q", cfg.Workspace.Retention)
	}

	return cfg, nil
}
