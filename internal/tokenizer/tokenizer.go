// Package tokenizer implements the T5 SentencePiece tokenizer: a unigram
// segmenter read from spiece.model plus the special-token handling,
// truncation, padding, and decoding rules configured by tokenizer_config.json.
package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Artifact names read by Load.
const (
	ModelFile  = "spiece.model"
	ConfigFile = "tokenizer_config.json"
)

// Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	sp  *unigram
	cfg Config

	padID, eosID, unkID int

	special   map[string]int
	specialID map[int]string
	// literals groups special-token strings by first byte, longest first.
	literals map[byte][]string
}

// EncodeOptions controls batch encoding.
type EncodeOptions struct {
	// MaxLength bounds each sequence when Truncation is set; 0 means model_max_length.
	MaxLength  int
	Truncation bool
	// Padding pads every sequence to the longest one in the batch.
	Padding bool
}

// Batch is the encoder input for a batch of texts.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int
}

// Load builds a Tokenizer from spiece.model and tokenizer_config.json in dir.
func Load(dir string) (*Tokenizer, error) {
	data, err := os.ReadFile(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("tokenizer: read model: %w", err)
	}
	mp, err := ParseModelProto(data)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, err
	}
	return New(mp, cfg)
}

// New builds a Tokenizer from a parsed model and config.
func New(mp *ModelProto, cfg Config) (*Tokenizer, error) {
	sp, err := newUnigram(mp)
	if err != nil {
		return nil, err
	}
	if cfg.ModelMaxLength <= 0 {
		cfg.ModelMaxLength = DefaultModelMaxLength
	}
	t := &Tokenizer{
		sp:        sp,
		cfg:       cfg,
		special:   make(map[string]int),
		specialID: make(map[int]string),
		literals:  make(map[byte][]string),
	}

	named := []struct {
		token string
		dst   *int
	}{
		{cfg.PadToken, &t.padID},
		{cfg.EOSToken, &t.eosID},
		{cfg.UnkToken, &t.unkID},
	}
	for _, n := range named {
		id, ok := t.lookupToken(n.token)
		if !ok {
			return nil, fmt.Errorf("tokenizer: special token %q not in vocabulary", n.token)
		}
		*n.dst = id
		t.addSpecial(n.token, id)
	}
	for i := 0; i < cfg.ExtraIDs; i++ {
		t.addSpecial(extraIDToken(i), t.VocabSize()-1-i)
	}
	for _, tok := range cfg.AdditionalSpecialTokens {
		if id, ok := t.lookupToken(tok); ok {
			t.addSpecial(tok, id)
		}
	}
	for b := range t.literals {
		lits := t.literals[b]
		sort.Slice(lits, func(i, j int) bool { return len(lits[i]) > len(lits[j]) })
	}
	return t, nil
}

func extraIDToken(n int) string { return "<extra_id_" + strconv.Itoa(n) + ">" }

// lookupToken resolves a token string to an id: the SentencePiece vocabulary
// first, then the <extra_id_N> sentinels appended after it.
func (t *Tokenizer) lookupToken(tok string) (int, bool) {
	if id, ok := t.sp.index[tok]; ok {
		return id, true
	}
	if rest, ok := strings.CutPrefix(tok, "<extra_id_"); ok {
		if num, ok := strings.CutSuffix(rest, ">"); ok {
			n, err := strconv.Atoi(num)
			if err == nil && n >= 0 && n < t.cfg.ExtraIDs {
				return t.VocabSize() - 1 - n, true
			}
		}
	}
	return 0, false
}

func (t *Tokenizer) addSpecial(tok string, id int) {
	if tok == "" {
		return
	}
	if _, ok := t.special[tok]; ok {
		return
	}
	t.special[tok] = id
	if _, ok := t.specialID[id]; !ok {
		t.specialID[id] = tok
	}
	t.literals[tok[0]] = append(t.literals[tok[0]], tok)
}

// VocabSize counts SentencePiece pieces plus extra ids.
func (t *Tokenizer) VocabSize() int { return t.sp.size() + t.cfg.ExtraIDs }

func (t *Tokenizer) PadID() int          { return t.padID }
func (t *Tokenizer) EOSID() int          { return t.eosID }
func (t *Tokenizer) UnkID() int          { return t.unkID }
func (t *Tokenizer) ModelMaxLength() int { return t.cfg.ModelMaxLength }

// IsSpecial reports whether id is a pad, eos, unk, extra id or other special token.
func (t *Tokenizer) IsSpecial(id int) bool {
	_, ok := t.specialID[id]
	return ok
}

// Token returns the string form of one id; out-of-range ids map to the unk token.
func (t *Tokenizer) Token(id int) string {
	if tok, ok := t.specialID[id]; ok {
		return tok
	}
	if id < 0 || id >= t.sp.size() {
		return t.specialID[t.unkID]
	}
	return t.sp.pieces[id].Piece
}

// Encode tokenizes one text and appends </s>, without truncation.
func (t *Tokenizer) Encode(text string) []int {
	var ids []int
	t.split(text, func(seg string, special int) {
		if special >= 0 {
			ids = append(ids, special)
			return
		}
		ids = append(ids, t.sp.encode(seg)...)
	})
	if len(ids) == 0 || ids[len(ids)-1] != t.eosID {
		ids = append(ids, t.eosID)
	}
	return ids
}

// split walks text, calling fn with either a plain segment (special = -1)
// or a special-token literal's id.
func (t *Tokenizer) split(text string, fn func(seg string, special int)) {
	start := 0
	for i := 0; i < len(text); i++ {
		for _, lit := range t.literals[text[i]] {
			if !strings.HasPrefix(text[i:], lit) {
				continue
			}
			if start < i {
				fn(text[start:i], -1)
			}
			fn("", t.special[lit])
			i += len(lit) - 1
			start = i + 1
			break
		}
	}
	if start < len(text) {
		fn(text[start:], -1)
	}
}

// EncodeBatch encodes texts with the truncation and padding rules in opts.
// Truncation keeps the first MaxLength-1 tokens and re-appends </s>.
func (t *Tokenizer) EncodeBatch(texts []string, opts EncodeOptions) Batch {
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = t.cfg.ModelMaxLength
	}
	b := Batch{
		InputIDs:      make([][]int, len(texts)),
		AttentionMask: make([][]int, len(texts)),
	}
	longest := 0
	for i, text := range texts {
		ids := t.Encode(text)
		if opts.Truncation && len(ids) > maxLen {
			ids = append(ids[:maxLen-1:maxLen-1], t.eosID)
		}
		b.InputIDs[i] = ids
		longest = max(longest, len(ids))
	}
	for i, ids := range b.InputIDs {
		mask := make([]int, len(ids), longest)
		for j := range mask {
			mask[j] = 1
		}
		if opts.Padding {
			for len(ids) < longest {
				ids = append(ids, t.padID)
				mask = append(mask, 0)
			}
		}
		b.InputIDs[i] = ids
		b.AttentionMask[i] = mask
	}
	return b
}

// Decode turns ids back into text. With skipSpecial, pad, eos, unk and extra
// ids are dropped, as are ids outside the vocabulary.
func (t *Tokenizer) Decode(ids []int, skipSpecial bool) string {
	var (
		out         strings.Builder
		sub         []int
		prevSpecial bool
	)
	for _, id := range ids {
		if id < 0 || id >= t.VocabSize() {
			if skipSpecial {
				continue
			}
			id = t.unkID
		}
		if tok, ok := t.specialID[id]; ok {
			if skipSpecial {
				continue
			}
			if !prevSpecial {
				out.WriteByte(' ')
			}
			out.WriteString(t.sp.decode(sub))
			out.WriteString(tok)
			sub = sub[:0]
			prevSpecial = true
			continue
		}
		sub = append(sub, id)
		prevSpecial = false
	}
	out.WriteString(t.sp.decode(sub))

	text := strings.TrimSpace(out.String())
	if t.cfg.CleanUpTokenizationSpaces {
		text = cleanUpTokenization(text)
	}
	return text
}

func cleanUpTokenization(s string) string {
	for _, r := range [][2]string{
		{" .", "."}, {" ?", "?"}, {" !", "!"}, {" ,", ","}, {" ' ", "'"},
		{" n't", "n't"}, {" 'm", "'m"}, {" 's", "'s"}, {" 've", "'ve"}, {" 're", "'re"},
	} {
		s = strings.ReplaceAll(s, r[0], r[1])
	}
	return s
}
