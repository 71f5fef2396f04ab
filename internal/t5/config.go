// Package t5 is a CPU runtime for T5 encoder-decoder checkpoints: it builds the
// architecture from config.json, overlays a PyTorch state dict, and decodes greedily.
package t5

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Config mirrors the fields of a Hugging Face T5 config.json that affect inference.
type Config struct {
	VocabSize                    int     `json:"vocab_size"`
	DModel                       int     `json:"d_model"`
	DKV                          int     `json:"d_kv"`
	DFF                          int     `json:"d_ff"`
	NumLayers                    int     `json:"num_layers"`
	NumDecoderLayers             int     `json:"num_decoder_layers"`
	NumHeads                     int     `json:"num_heads"`
	RelativeAttentionNumBuckets  int     `json:"relative_attention_num_buckets"`
	RelativeAttentionMaxDistance int     `json:"relative_attention_max_distance"`
	LayerNormEpsilon             float64 `json:"layer_norm_epsilon"`
	FeedForwardProj              string  `json:"feed_forward_proj"`
	TieWordEmbeddings            bool    `json:"tie_word_embeddings"`
	PadTokenID                   int     `json:"pad_token_id"`
	EOSTokenID                   int     `json:"eos_token_id"`
	DecoderStartTokenID          int     `json:"decoder_start_token_id"`
	ModelType                    string  `json:"model_type"`
}

// DefaultConfig returns the t5-small defaults used for any field config.json omits.
func DefaultConfig() Config {
	return Config{
		VocabSize:                    32128,
		DModel:                       512,
		DKV:                          64,
		DFF:                          2048,
		NumLayers:                    6,
		NumHeads:                     8,
		RelativeAttentionNumBuckets:  32,
		RelativeAttentionMaxDistance: 128,
		LayerNormEpsilon:             1e-6,
		FeedForwardProj:              "relu",
		TieWordEmbeddings:            true,
		PadTokenID:                   0,
		EOSTokenID:                   1,
		DecoderStartTokenID:          0,
		ModelType:                    "t5",
	}
}

// LoadConfig reads and validates a config.json file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("t5: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes config.json content on top of DefaultConfig.
// A null or absent num_decoder_layers means "same as num_layers".
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("t5: parse config: %w", err)
	}
	if cfg.NumDecoderLayers == 0 {
		cfg.NumDecoderLayers = cfg.NumLayers
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot build.
func (c Config) Validate() error {
	if c.ModelType != "" && c.ModelType != "t5" && c.ModelType != "mt5" {
		return fmt.Errorf("t5: unsupported model_type %q", c.ModelType)
	}
	dims := []struct {
		name string
		v    int
	}{
		{"vocab_size", c.VocabSize},
		{"d_model", c.DModel},
		{"d_kv", c.DKV},
		{"d_ff", c.DFF},
		{"num_layers", c.NumLayers},
		{"num_decoder_layers", c.NumDecoderLayers},
		{"num_heads", c.NumHeads},
		{"relative_attention_num_buckets", c.RelativeAttentionNumBuckets},
		{"relative_attention_max_distance", c.RelativeAttentionMaxDistance},
	}
	for _, d := range dims {
		if d.v <= 0 {
			return fmt.Errorf("t5: config %s must be positive, got %d", d.name, d.v)
		}
	}
	for name, id := range map[string]int{
		"pad_token_id":           c.PadTokenID,
		"eos_token_id":           c.EOSTokenID,
		"decoder_start_token_id": c.DecoderStartTokenID,
	} {
		if id < 0 || id >= c.VocabSize {
			return fmt.Errorf("t5: config %s %d outside vocabulary of %d", name, id, c.VocabSize)
		}
	}
	if _, _, err := c.feedForward(); err != nil {
		return err
	}
	return nil
}

// feedForward resolves feed_forward_proj ("relu", "gated-gelu", ...) the way
// transformers does: "gated-gelu" maps to the tanh-approximated gelu.
func (c Config) feedForward() (bool, activation, error) {
	parts := strings.Split(c.FeedForwardProj, "-")
	gated := parts[0] == "gated"
	if len(parts) > 2 || (len(parts) == 2 && !gated) {
		return false, nil, fmt.Errorf("t5: invalid feed_forward_proj %q", c.FeedForwardProj)
	}
	name := parts[len(parts)-1]
	if c.FeedForwardProj == "gated-gelu" {
		name = "gelu_new"
	}
	act, ok := activations[name]
	if !ok {
		return false, nil, fmt.Errorf("t5: unsupported activation %q", name)
	}
	return gated, act, nil
}
