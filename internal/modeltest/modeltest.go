// Package modeltest builds tiny deterministic T5 models and SentencePiece
// tokenizers so the correction pipeline can run without real weights.
package modeltest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlorentedev/gramfix/internal/t5"
	"github.com/mlorentedev/gramfix/internal/tokenizer"
)

// Reply is what the model built by Pair generates for any input.
const Reply = "He goes to school."

var words = []string{
	"▁He", "▁goes", "▁to", "▁school", ".", "▁he", "▁go",
	"▁correct", ":", "▁every", "▁day", "▁I", "▁has", "▁a", "▁apple",
}

// TokenizerProto returns the fixture SentencePiece vocabulary: T5 control
// pieces at 0..2, "▁" at 3, then one piece per fixture word.
func TokenizerProto() *tokenizer.ModelProto {
	pieces := []tokenizer.Piece{
		{Piece: "<pad>", Type: tokenizer.Control},
		{Piece: "</s>", Type: tokenizer.Control},
		{Piece: "<unk>", Type: tokenizer.Unknown},
		{Piece: "▁", Score: -3, Type: tokenizer.Normal},
	}
	for _, w := range words {
		pieces = append(pieces, tokenizer.Piece{Piece: w, Score: -1, Type: tokenizer.Normal})
	}
	return &tokenizer.ModelProto{
		Pieces:                 pieces,
		ModelType:              tokenizer.ModelUnigram,
		UnkID:                  2,
		BOSID:                  -1,
		EOSID:                  1,
		PadID:                  0,
		NormalizerName:         "nmt_nfkc",
		AddDummyPrefix:         true,
		RemoveExtraWhitespaces: true,
		EscapeWhitespaces:      true,
	}
}

// TokenizerConfig is the tokenizer_config.json content matching TokenizerProto.
const TokenizerConfig = `{"eos_token": "</s>", "unk_token": "<unk>", "pad_token": "<pad>", "extra_ids": 0, "model_max_length": 512}`

// Tokenizer returns a tokenizer over the fixture vocabulary.
func Tokenizer(t testing.TB) *tokenizer.Tokenizer {
	t.Helper()
	cfg, err := tokenizer.ParseConfig([]byte(TokenizerConfig))
	if err != nil {
		t.Fatalf("modeltest: tokenizer config: %v", err)
	}
	tok, err := tokenizer.New(TokenizerProto(), cfg)
	if err != nil {
		t.Fatalf("modeltest: tokenizer: %v", err)
	}
	return tok
}

// Config returns a model config sized to the fixture vocabulary.
func Config() t5.Config {
	n := len(words) + 4
	return t5.Config{
		VocabSize:                    n,
		DModel:                       n,
		DKV:                          4,
		DFF:                          8,
		NumLayers:                    1,
		NumDecoderLayers:             1,
		NumHeads:                     2,
		RelativeAttentionNumBuckets:  8,
		RelativeAttentionMaxDistance: 16,
		LayerNormEpsilon:             1e-6,
		FeedForwardProj:              "relu",
		TieWordEmbeddings:            false,
		PadTokenID:                   0,
		EOSTokenID:                   1,
		DecoderStartTokenID:          0,
		ModelType:                    "t5",
	}
}

// Model returns a model that ignores its input and emits reply then </s>.
// Attention and feed-forward weights are zero, embeddings are one-hot and
// lm_head maps each token to its successor, so reply ids must be distinct.
func Model(t testing.TB, reply ...int) *t5.Model {
	t.Helper()
	cfg := Config()
	m, err := t5.New(cfg)
	if err != nil {
		t.Fatalf("modeltest: model: %v", err)
	}
	for _, p := range m.Parameters() {
		if len(p.Shape) == 1 {
			for i := range p.Data {
				p.Data[i] = 1
			}
		}
	}
	shared, _ := m.Parameter("shared.weight")
	for i := 0; i < cfg.VocabSize; i++ {
		shared.Data[i*cfg.DModel+i] = 1
	}
	head, _ := m.Parameter("lm_head.weight")
	prev := cfg.DecoderStartTokenID
	for _, next := range append(reply, cfg.EOSTokenID) {
		head.Data[next*cfg.DModel+prev] = 1
		prev = next
	}
	return m
}

// Pair returns a fixture model generating Reply and the matching tokenizer.
func Pair(t testing.TB) (*t5.Model, *tokenizer.Tokenizer) {
	t.Helper()
	tok := Tokenizer(t)
	ids := tok.Encode(Reply)
	return Model(t, ids[:len(ids)-1]...), tok
}

// WriteArtifacts writes the four model-directory files into dir. weights is
// written verbatim as model.pth.
func WriteArtifacts(t testing.TB, dir string, weights []byte) {
	t.Helper()
	cfg, err := json.Marshal(Config())
	if err != nil {
		t.Fatal(err)
	}
	files := map[string][]byte{
		"model.pth":             weights,
		"spiece.model":          TokenizerProto().Marshal(),
		"tokenizer_config.json": []byte(TokenizerConfig),
		"config.json":           cfg,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("modeltest: write %s: %v", name, err)
		}
	}
}
