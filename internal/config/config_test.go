package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  provider: hashing
  dimensions: 64
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Embedding.Provider != ProviderHashing || cfg.Embedding.Dimensions != 64 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Data.IndexPath == "" || cfg.Data.MetadataPath == "" {
		t.Error("artifact paths should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
data:
  catalog_path: "./catalog/artifacts.xlsx"
  index_path: "./embeddings/artifacts.index"
evaluation:
  queries_path: "./eval/queries.csv"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"catalog_path", cfg.Data.CatalogPath, filepath.Join(dir, "catalog", "artifacts.xlsx")},
		{"index_path", cfg.Data.IndexPath, filepath.Join(dir, "embeddings", "artifacts.index")},
		{"metadata_path default", cfg.Data.MetadataPath, filepath.Join(dir, "data", "embeddings", "artifacts_meta.db")},
		{"queries_path", cfg.Evaluation.QueriesPath, filepath.Join(dir, "eval", "queries.csv")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_absolutePathUnchanged(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "runs.db")
	path := writeConfig(t, "data:\n  runs_path: \""+abs+"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Data.RunsPath != abs {
		t.Errorf("runs_path = %s, want %s", cfg.Data.RunsPath, abs)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"bad provider", "embedding:\n  provider: onnx\n", "Embedding.Provider"},
		{"bad port", "server:\n  port: 70000\n", "Server.Port"},
		{"temperature too high", "generation:\n  temperature: 3\n", "Generation.Temperature"},
		{"max_k below default_k", "retrieval:\n  default_k: 5\n  max_k: 2\n", "Retrieval.MaxK"},
		{"too many attempts", "embedding:\n  max_attempts: 20\n", "Embedding.MaxAttempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should name %s", err, tt.field)
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoad_malformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed\n"))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoad_dotEnvInConfigDir(t *testing.T) {
	const name = "MUSEAI_TEST_DOTENV_KEY"
	t.Setenv(name, "")
	os.Unsetenv(name)

	path := writeConfig(t, "embedding:\n  api_key_env: "+name+"\n")
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(name+"=sk-from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	key, err := APIKey(cfg.Embedding.APIKeyEnv)
	if err != nil {
		t.Fatal(err)
	}
	if key != "sk-from-dotenv" {
		t.Errorf("APIKey = %q, want sk-from-dotenv", key)
	}
}

func TestAPIKey(t *testing.T) {
	t.Run("empty name needs no key", func(t *testing.T) {
		key, err := APIKey("")
		if err != nil || key != "" {
			t.Errorf("APIKey(\"\") = %q, %v", key, err)
		}
	})
	t.Run("unset variable", func(t *testing.T) {
		const name = "MUSEAI_TEST_UNSET_KEY"
		t.Setenv(name, "")
		_, err := APIKey(name)
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should name the variable: %v", err)
		}
	})
	t.Run("set variable trimmed", func(t *testing.T) {
		const name = "MUSEAI_TEST_SET_KEY"
		t.Setenv(name, "  sk-123 \n")
		key, err := APIKey(name)
		if err != nil {
			t.Fatal(err)
		}
		if key != "sk-123" {
			t.Errorf("APIKey = %q", key)
		}
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != ProviderRemote {
		t.Errorf("default provider: got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.MaxAttempts != 5 || cfg.Embedding.BaseDelayMS != 1000 {
		t.Errorf("default retry: attempts=%d delay=%d", cfg.Embedding.MaxAttempts, cfg.Embedding.BaseDelayMS)
	}
	if cfg.Embedding.Dimensions != 0 {
		t.Errorf("remote dimensions should be learned, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.DefaultK != 3 || cfg.Evaluation.K != 3 {
		t.Errorf("default k: retrieval=%d evaluation=%d", cfg.Retrieval.DefaultK, cfg.Evaluation.K)
	}
	if cfg.Watch.Debounce().Milliseconds() != 500 {
		t.Errorf("default debounce: got %v", cfg.Watch.Debounce())
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_hashingDimensions(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: ProviderHashing}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("hashing dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.BaseURL != "" {
		t.Errorf("hashing provider should not get a base URL, got %s", cfg.Embedding.BaseURL)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" || cfg.Generation.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("api_key_env defaults: %s / %s", cfg.Embedding.APIKeyEnv, cfg.Generation.APIKeyEnv)
	}
	if cfg.Data.CatalogPath != "./data/artifacts.csv" {
		t.Errorf("catalog path: got %s", cfg.Data.CatalogPath)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := Default()
	cfg.Server.Port = 9191
	cfg.Embedding.Provider = ProviderHashing
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9191 || loaded.Embedding.Provider != ProviderHashing {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestDurations(t *testing.T) {
	e := EmbeddingConfig{TimeoutSecs: 30, BaseDelayMS: 250}
	if e.Timeout().Seconds() != 30 {
		t.Errorf("timeout: %v", e.Timeout())
	}
	if e.BaseDelay().Milliseconds() != 250 {
		t.Errorf("base delay: %v", e.BaseDelay())
	}
	g := GenerationConfig{TimeoutSecs: 120}
	if g.Timeout().Seconds() != 120 {
		t.Errorf("generation timeout: %v", g.Timeout())
	}
}
