// Package config provides configuration loading, validation, and secrets for museai.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfig marks configuration errors. They are fatal and never retried.
var ErrConfig = errors.New("configuration error")

// Embedding providers.
const (
	ProviderRemote  = "remote"
	ProviderHashing = "hashing"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// DataConfig holds the catalog and artifact paths.
type DataConfig struct {
	CatalogPath  string `yaml:"catalog_path" validate:"required"`
	IndexPath    string `yaml:"index_path" validate:"required"`
	MetadataPath string `yaml:"metadata_path" validate:"required"`
	RunsPath     string `yaml:"runs_path" validate:"required"`
}

// EmbeddingConfig holds embedding client, cache, and retry settings.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" validate:"oneof=remote hashing"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions" validate:"gte=0"`
	TimeoutSecs       int     `yaml:"timeout_secs" validate:"gte=1"`
	MaxAttempts       int     `yaml:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelayMS       int     `yaml:"base_delay_ms" validate:"gte=0"`
	CacheSize         int     `yaml:"cache_size" validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// Timeout returns the request timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// BaseDelay returns the first retry delay.
func (e *EmbeddingConfig) BaseDelay() time.Duration {
	return time.Duration(e.BaseDelayMS) * time.Millisecond
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	BaseURL           string  `yaml:"base_url" validate:"required,url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model" validate:"required"`
	TimeoutSecs       int     `yaml:"timeout_secs" validate:"gte=1"`
	Temperature       float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	Language          string  `yaml:"language" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// Timeout returns the request timeout.
func (g *GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	DefaultK int `yaml:"default_k" validate:"gte=1"`
	MaxK     int `yaml:"max_k" validate:"gtefield=DefaultK"`
}

// EvaluationConfig holds labeled-query inputs and report outputs.
type EvaluationConfig struct {
	QueriesPath       string `yaml:"queries_path" validate:"required"`
	GroundTruthPath   string `yaml:"ground_truth_path" validate:"required"`
	RetrievalLogPath  string `yaml:"retrieval_log_path"`
	RetrievalEvalPath string `yaml:"retrieval_eval_path"`
	GroundingEvalPath string `yaml:"grounding_eval_path"`
	K                 int    `yaml:"k" validate:"gte=1"`
}

// WatchConfig holds catalog watch settings.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" validate:"gte=0"`
}

// Debounce returns the debounce interval.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Load reads the config file at path, loads .env files, applies defaults,
// expands paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config: %v", ErrConfig, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfig, err)
	}

	configDir := filepath.Dir(path)
	LoadEnv(configDir)
	ApplyDefaults(&cfg)

	cfg.Data.CatalogPath = expandPath(cfg.Data.CatalogPath, configDir)
	cfg.Data.IndexPath = expandPath(cfg.Data.IndexPath, configDir)
	cfg.Data.MetadataPath = expandPath(cfg.Data.MetadataPath, configDir)
	cfg.Data.RunsPath = expandPath(cfg.Data.RunsPath, configDir)
	cfg.Evaluation.QueriesPath = expandPath(cfg.Evaluation.QueriesPath, configDir)
	cfg.Evaluation.GroundTruthPath = expandPath(cfg.Evaluation.GroundTruthPath, configDir)
	cfg.Evaluation.RetrievalLogPath = expandPath(cfg.Evaluation.RetrievalLogPath, configDir)
	cfg.Evaluation.RetrievalEvalPath = expandPath(cfg.Evaluation.RetrievalEvalPath, configDir)
	cfg.Evaluation.GroundingEvalPath = expandPath(cfg.Evaluation.GroundingEvalPath, configDir)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv loads .env from configDir and then the working directory. Variables
// already set in the environment win.
func LoadEnv(configDir string) {
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load(".env")
}

var validate = validator.New()

// Validate checks field constraints and returns an ErrConfig-wrapped error
// naming every invalid field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrConfig, strings.Join(msgs, "; "))
}

// APIKey reads the secret named by envName. An empty envName means the
// endpoint needs no key; a named but unset variable is a configuration error.
func APIKey(envName string) (string, error) {
	if envName == "" {
		return "", nil
	}
	v := strings.TrimSpace(os.Getenv(envName))
	if v == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set (add it to the environment or a .env file)", ErrConfig, envName)
	}
	return v, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
