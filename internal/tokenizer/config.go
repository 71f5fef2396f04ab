package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultModelMaxLength is used when tokenizer_config.json omits model_max_length.
const DefaultModelMaxLength = 512

// Config is the subset of tokenizer_config.json that changes T5 tokenization.
type Config struct {
	EOSToken                  string
	UnkToken                  string
	PadToken                  string
	ExtraIDs                  int
	ModelMaxLength            int
	CleanUpTokenizationSpaces bool
	AdditionalSpecialTokens   []string
}

// DefaultConfig returns the T5Tokenizer constructor defaults.
func DefaultConfig() Config {
	return Config{
		EOSToken:                  "</s>",
		UnkToken:                  "<unk>",
		PadToken:                  "<pad>",
		ExtraIDs:                  100,
		ModelMaxLength:            DefaultModelMaxLength,
		CleanUpTokenizationSpaces: true,
	}
}

// addedToken accepts both the plain string form and the serialized
// AddedToken object form ({"content": ..., "__type": "AddedToken"}).
type addedToken string

func (a *addedToken) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = addedToken(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("added token: %w", err)
	}
	*a = addedToken(obj.Content)
	return nil
}

type rawConfig struct {
	EOSToken                  *addedToken  `json:"eos_token"`
	UnkToken                  *addedToken  `json:"unk_token"`
	PadToken                  *addedToken  `json:"pad_token"`
	ExtraIDs                  *int         `json:"extra_ids"`
	ModelMaxLength            *float64     `json:"model_max_length"`
	CleanUpTokenizationSpaces *bool        `json:"clean_up_tokenization_spaces"`
	AdditionalSpecialTokens   []addedToken `json:"additional_special_tokens"`
}

// ParseConfig decodes tokenizer_config.json on top of DefaultConfig.
// Oversized model_max_length sentinels (1e30 for "unbounded") fall back to the default.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("tokenizer: parse config: %w", err)
	}
	if raw.EOSToken != nil {
		cfg.EOSToken = string(*raw.EOSToken)
	}
	if raw.UnkToken != nil {
		cfg.UnkToken = string(*raw.UnkToken)
	}
	if raw.PadToken != nil {
		cfg.PadToken = string(*raw.PadToken)
	}
	if raw.ExtraIDs != nil {
		if *raw.ExtraIDs < 0 {
			return Config{}, fmt.Errorf("tokenizer: parse config: negative extra_ids %d", *raw.ExtraIDs)
		}
		cfg.ExtraIDs = *raw.ExtraIDs
	}
	if raw.ModelMaxLength != nil && *raw.ModelMaxLength >= 1 && *raw.ModelMaxLength < 1e9 {
		cfg.ModelMaxLength = int(*raw.ModelMaxLength)
	}
	if raw.CleanUpTokenizationSpaces != nil {
		cfg.CleanUpTokenizationSpaces = *raw.CleanUpTokenizationSpaces
	}
	for _, tok := range raw.AdditionalSpecialTokens {
		cfg.AdditionalSpecialTokens = append(cfg.AdditionalSpecialTokens, string(tok))
	}
	return cfg, nil
}

// LoadConfig reads tokenizer_config.json from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("tokenizer: read config: %w", err)
	}
	return ParseConfig(data)
}
