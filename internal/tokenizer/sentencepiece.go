package tokenizer

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// spaceSymbol is U+2581, the escaped whitespace marker.
	spaceSymbol = "▁"
	unkPenalty  = 10
)

// unigram is a SentencePiece unigram segmenter using Viterbi over piece scores.
type unigram struct {
	pieces   []Piece
	index    map[string]int
	lookup   map[string]int
	maxBytes int
	minScore float32
	maxScore float32
	unkID    int
	norm     normalizer
}

func newUnigram(mp *ModelProto) (*unigram, error) {
	if mp.ModelType != ModelUnigram {
		return nil, fmt.Errorf("tokenizer: unsupported sentencepiece model type %d", mp.ModelType)
	}
	if mp.UnkID < 0 || mp.UnkID >= len(mp.Pieces) {
		return nil, fmt.Errorf("tokenizer: unk id %d outside vocabulary of %d", mp.UnkID, len(mp.Pieces))
	}
	pieces := make([]Piece, len(mp.Pieces))
	for i, p := range mp.Pieces {
		if p.Type == 0 {
			p.Type = Normal
		}
		pieces[i] = p
	}
	u := &unigram{
		pieces:   pieces,
		index:    make(map[string]int, len(mp.Pieces)),
		lookup:   make(map[string]int, len(mp.Pieces)),
		minScore: float32(math.MaxFloat32),
		maxScore: -float32(math.MaxFloat32),
		unkID:    mp.UnkID,
		norm:     newNormalizer(mp),
	}
	for id, p := range pieces {
		if _, seen := u.index[p.Piece]; !seen {
			u.index[p.Piece] = id
		}
		if p.Type != Normal && p.Type != UserDefined {
			continue
		}
		if _, dup := u.lookup[p.Piece]; dup {
			return nil, fmt.Errorf("tokenizer: duplicate piece %q", p.Piece)
		}
		u.lookup[p.Piece] = id
		u.maxBytes = max(u.maxBytes, len(p.Piece))
		if p.Type == Normal {
			u.minScore = min(u.minScore, p.Score)
			u.maxScore = max(u.maxScore, p.Score)
		}
	}
	if u.maxScore < u.minScore {
		u.minScore, u.maxScore = 0, 0
	}
	return u, nil
}

func (u *unigram) size() int { return len(u.pieces) }

func (u *unigram) score(id int) float32 {
	p := u.pieces[id]
	if p.Type == UserDefined {
		return float32(utf8.RuneCountInString(p.Piece))*u.maxScore - 0.1
	}
	return p.Score
}

// encode normalizes text and returns its best-scoring piece ids.
// Runs of unknown characters collapse into a single unk id.
func (u *unigram) encode(text string) []int {
	s := u.norm.normalize(text)
	if s == "" {
		return nil
	}

	type node struct {
		score float64
		start int
		id    int
		ok    bool
	}
	best := make([]node, len(s)+1)
	best[0].ok = true
	unkScore := float64(u.minScore - unkPenalty)

	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])
		if best[i].ok {
			single := false
			for j := i + 1; j <= len(s) && j-i <= u.maxBytes; j++ {
				if j < len(s) && !utf8.RuneStart(s[j]) {
					continue
				}
				id, found := u.lookup[s[i:j]]
				if !found {
					continue
				}
				if j == i+size {
					single = true
				}
				cand := best[i].score + float64(u.score(id))
				if !best[j].ok || cand > best[j].score {
					best[j] = node{score: cand, start: i, id: id, ok: true}
				}
			}
			if !single {
				j := i + size
				cand := best[i].score + unkScore
				if !best[j].ok || cand > best[j].score {
					best[j] = node{score: cand, start: i, id: u.unkID, ok: true}
				}
			}
		}
		i += size
	}

	var ids []int
	for end := len(s); end > 0; end = best[end].start {
		ids = append(ids, best[end].id)
	}
	out := make([]int, 0, len(ids))
	for k := len(ids) - 1; k >= 0; k-- {
		if ids[k] == u.unkID && len(out) > 0 && out[len(out)-1] == u.unkID {
			continue
		}
		out = append(out, ids[k])
	}
	return out
}

// decode joins pieces and unescapes whitespace. Unknown ids render as " ⁇ ".
func (u *unigram) decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		if id == u.unkID {
			b.WriteString(" ⁇ ")
			continue
		}
		p := u.pieces[id]
		if p.Type == Control || p.Type == Unused {
			continue
		}
		b.WriteString(p.Piece)
	}
	out := strings.ReplaceAll(b.String(), spaceSymbol, " ")
	if u.norm.addDummyPrefix {
		out = strings.TrimPrefix(out, " ")
	}
	return out
}
