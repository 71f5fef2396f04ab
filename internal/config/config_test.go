package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GRAMFIX_PORT", "GRAMFIX_MODEL_DIR", "GRAMFIX_PRELOAD", "GRAMFIX_MAX_LENGTH",
		"GRAMFIX_TASK_PREFIX", "GRAMFIX_OLLAMA_URL", "GRAMFIX_OLLAMA_MODEL",
		"GRAMFIX_API_KEY", "GRAMFIX_RATE_LIMIT", "GRAMFIX_LOG_LEVEL", "GRAMFIX_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with no file: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port", cfg.Port, 8090},
		{"model_dir", cfg.ModelDir, "Model"},
		{"preload", cfg.Preload, true},
		{"max_length", cfg.MaxLength, 128},
		{"task_prefix", cfg.TaskPrefix, "correct: "},
		{"ollama_url", cfg.OllamaURL, ""},
		{"ollama_model", cfg.OllamaModel, "qwen2.5:1.5b"},
		{"api_key", cfg.APIKey, ""},
		{"rate_limit", cfg.RateLimit, 10},
		{"log_level", cfg.LogLevel, "info"},
		{"log_format", cfg.LogFormat, "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	content := `port: 9999
model_dir: "/srv/models/grammar-t5"
preload: false
max_length: 64
ollama_url: "http://jetson.local:11434"
api_key: "my-secret-key"
rate_limit: 0
log_format: json
`
	if err := os.WriteFile(yamlPath, []byte(content), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port", cfg.Port, 9999},
		{"model_dir", cfg.ModelDir, "/srv/models/grammar-t5"},
		{"preload", cfg.Preload, false},
		{"max_length", cfg.MaxLength, 64},
		{"ollama_url", cfg.OllamaURL, "http://jetson.local:11434"},
		{"api_key", cfg.APIKey, "my-secret-key"},
		{"rate_limit", cfg.RateLimit, 0},
		{"log_format", cfg.LogFormat, "json"},
		{"task_prefix untouched", cfg.TaskPrefix, "correct: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	content := `port: 9999
ollama_url: "http://from-yaml:11434"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("GRAMFIX_PORT", "7777")
	t.Setenv("GRAMFIX_OLLAMA_URL", "http://from-env:11434")
	t.Setenv("GRAMFIX_MODEL_DIR", "/env/model")
	t.Setenv("GRAMFIX_PRELOAD", "false")
	t.Setenv("GRAMFIX_RATE_LIMIT", "100")
	t.Setenv("GRAMFIX_API_KEY", "env-api-key")

	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port from env", cfg.Port, 7777},
		{"ollama_url from env", cfg.OllamaURL, "http://from-env:11434"},
		{"model_dir from env", cfg.ModelDir, "/env/model"},
		{"preload from env", cfg.Preload, false},
		{"rate_limit from env", cfg.RateLimit, 100},
		{"api_key from env", cfg.APIKey, "env-api-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"GRAMFIX_PORT", "eighty"},
		{"GRAMFIX_MAX_LENGTH", "1.5"},
		{"GRAMFIX_RATE_LIMIT", "ten"},
		{"GRAMFIX_PRELOAD", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("err = %v, want mention of %s", err, tt.key)
			}
		})
	}
}

func TestLoadRejectsNonPositiveMaxLength(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRAMFIX_MAX_LENGTH", "0")
	if _, err := Load(""); err == nil {
		t.Error("expected error for max_length 0, got nil")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("{{invalid"), 0644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	_, err := Load(yamlPath)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	t.Run("missing file ignored", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("LoadDotEnv: %v", err)
		}
	})

	t.Run("sets unset variables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("GRAMFIX_TEST_DOTENV=from-file\n"), 0644); err != nil {
			t.Fatalf("write env: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("GRAMFIX_TEST_DOTENV") })

		if err := LoadDotEnv(path); err != nil {
			t.Fatalf("LoadDotEnv: %v", err)
		}
		if got := os.Getenv("GRAMFIX_TEST_DOTENV"); got != "from-file" {
			t.Errorf("got %q, want %q", got, "from-file")
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("json at warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, "warn", "json")
		if err != nil {
			t.Fatalf("NewLogger: %v", err)
		}
		logger.Info("dropped")
		logger.Warn("kept", "k", "v")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("decode %q: %v", buf.String(), err)
		}
		if line["msg"] != "kept" || line["k"] != "v" {
			t.Errorf("got %v", line)
		}
	})

	t.Run("text default", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, "info", "")
		if err != nil {
			t.Fatalf("NewLogger: %v", err)
		}
		logger.Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Errorf("got %q", buf.String())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := NewLogger(&bytes.Buffer{}, "loud", "text"); err == nil {
			t.Error("expected error for invalid level")
		}
		if _, err := NewLogger(&bytes.Buffer{}, "info", "xml"); err == nil {
			t.Error("expected error for invalid format")
		}
	})
}
