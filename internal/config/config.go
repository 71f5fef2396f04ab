package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	ModelDir    string `yaml:"model_dir"`
	Preload     bool   `yaml:"preload"`
	MaxLength   int    `yaml:"max_length"`
	TaskPrefix  string `yaml:"task_prefix"`
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	APIKey      string `yaml:"api_key"`
	RateLimit   int    `yaml:"rate_limit"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		Port:        8090,
		ModelDir:    "Model",
		Preload:     true,
		MaxLength:   128,
		TaskPrefix:  "correct: ",
		OllamaModel: "qwen2.5:1.5b",
		RateLimit:   10,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads configuration from a YAML file (if path is non-empty), then
// applies GRAMFIX_* environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.MaxLength < 1 {
		return Config{}, fmt.Errorf("config: max_length must be positive, got %d", cfg.MaxLength)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"GRAMFIX_MODEL_DIR":    &cfg.ModelDir,
		"GRAMFIX_TASK_PREFIX":  &cfg.TaskPrefix,
		"GRAMFIX_OLLAMA_URL":   &cfg.OllamaURL,
		"GRAMFIX_OLLAMA_MODEL": &cfg.OllamaModel,
		"GRAMFIX_API_KEY":      &cfg.APIKey,
		"GRAMFIX_LOG_LEVEL":    &cfg.LogLevel,
		"GRAMFIX_LOG_FORMAT":   &cfg.LogFormat,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GRAMFIX_PORT":       &cfg.Port,
		"GRAMFIX_MAX_LENGTH": &cfg.MaxLength,
		"GRAMFIX_RATE_LIMIT": &cfg.RateLimit,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}

	if v := os.Getenv("GRAMFIX_PRELOAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid GRAMFIX_PRELOAD %q: %w", v, err)
		}
		cfg.Preload = b
	}
	return nil
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// NewLogger builds a slog logger writing to w. Format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("config: invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("config: invalid log format %q", format)
	}
}
