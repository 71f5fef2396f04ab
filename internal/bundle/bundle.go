// Package bundle resolves a model artifact directory and materializes the
// immutable (model, tokenizer) pair the corrector runs on.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/mlorentedev/gramfix/internal/t5"
	"github.com/mlorentedev/gramfix/internal/tokenizer"
)

// Artifact names inside a model directory.
const (
	WeightsFile         = "model.pth"
	VocabFile           = tokenizer.ModelFile
	TokenizerConfigFile = tokenizer.ConfigFile
	ModelConfigFile     = "config.json"
)

// RequiredFiles lists the artifacts Check looks for, in reporting order.
var RequiredFiles = []string{WeightsFile, VocabFile, TokenizerConfigFile, ModelConfigFile}

// Load stages reported in LoadError.
const (
	StageModelConfig = "model config"
	StageWeights     = "weights"
	StageTokenizer   = "tokenizer"
)

// ConfigError means the model directory is absent or incomplete.
// It is not retriable without operator action.
type ConfigError struct {
	Dir      string
	Missing  []string
	NotFound bool
}

func (e *ConfigError) Error() string {
	if e.NotFound {
		return "model directory not found at " + e.Dir
	}
	return fmt.Sprintf("required files missing from model directory %s: %s", e.Dir, strings.Join(e.Missing, ", "))
}

// LoadError means the artifacts exist but could not be deserialized.
type LoadError struct {
	Dir   string
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model bundle from %s: %s: %v", e.Dir, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Bundle is an immutable model plus tokenizer, shared read-only by all callers.
type Bundle struct {
	dir   string
	model *t5.Model
	tok   *tokenizer.Tokenizer
}

// New wraps an already built model and tokenizer.
func New(dir string, model *t5.Model, tok *tokenizer.Tokenizer) *Bundle {
	return &Bundle{dir: dir, model: model, tok: tok}
}

func (b *Bundle) Dir() string                     { return b.dir }
func (b *Bundle) Model() *t5.Model                { return b.model }
func (b *Bundle) Tokenizer() *tokenizer.Tokenizer { return b.tok }

// Check verifies that dir is a directory holding every required file.
// Only presence is checked.
func Check(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &ConfigError{Dir: dir, NotFound: true}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &ConfigError{Dir: dir, NotFound: true}
	}
	present := lo.SliceToMap(entries, func(e os.DirEntry) (string, bool) {
		return e.Name(), true
	})
	missing := lo.Filter(RequiredFiles, func(name string, _ int) bool {
		return !present[name]
	})
	if len(missing) > 0 {
		return &ConfigError{Dir: dir, Missing: missing}
	}
	return nil
}

// Open checks dir and builds a bundle from its artifacts.
func Open(dir string) (*Bundle, error) {
	if err := Check(dir); err != nil {
		return nil, err
	}
	fail := func(stage string, err error) (*Bundle, error) {
		return nil, &LoadError{Dir: dir, Stage: stage, Err: err}
	}

	cfg, err := t5.LoadConfig(filepath.Join(dir, ModelConfigFile))
	if err != nil {
		return fail(StageModelConfig, err)
	}
	model, err := t5.New(cfg)
	if err != nil {
		return fail(StageModelConfig, err)
	}
	sd, err := t5.ReadStateDict(filepath.Join(dir, WeightsFile))
	if err != nil {
		return fail(StageWeights, err)
	}
	if err := model.LoadStateDict(sd); err != nil {
		return fail(StageWeights, err)
	}

	tok, err := tokenizer.Load(dir)
	if err != nil {
		return fail(StageTokenizer, err)
	}
	if tok.VocabSize() > cfg.VocabSize {
		return fail(StageTokenizer, fmt.Errorf("tokenizer vocabulary %d exceeds model vocabulary %d", tok.VocabSize(), cfg.VocabSize))
	}
	return New(dir, model, tok), nil
}
