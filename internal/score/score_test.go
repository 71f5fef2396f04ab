package score

import (
	"math"
	"slices"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func TestScoreIdentical(t *testing.T) {
	for _, s := range []string{"hello", "She goes to school every day.", "a b a b"} {
		got := Score(s, s)
		want := Report{BLEU: 1, ROUGE1: 1, ROUGE2: 1, ROUGEL: 1}
		if got != want {
			t.Errorf("Score(%q, same) = %+v, want all 1", s, got)
		}
	}
}

func TestScoreDisjoint(t *testing.T) {
	got := Score("the cat sat", "dogs run fast")
	if got != (Report{}) {
		t.Errorf("Score(disjoint) = %+v, want all 0", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	tests := []struct{ original, corrected string }{
		{"", ""},
		{"", "something"},
		{"something", ""},
		{"   ", "\t\n"},
	}
	for _, tt := range tests {
		if got := Score(tt.original, tt.corrected); got != (Report{}) {
			t.Errorf("Score(%q, %q) = %+v, want all 0", tt.original, tt.corrected, got)
		}
	}
}

func TestScoreKnownValues(t *testing.T) {
	got := Score("the cat sat on the mat", "the cat sat")
	// "the" repeats in the original, so ROUGE-1 sees 5 distinct reference unigrams.
	want := Report{BLEU: math.Exp(-1), ROUGE1: 0.75, ROUGE2: 0.8 / 1.4, ROUGEL: 2.0 / 3}
	if !approx(got.BLEU, want.BLEU) || !approx(got.ROUGE1, want.ROUGE1) ||
		!approx(got.ROUGE2, want.ROUGE2) || !approx(got.ROUGEL, want.ROUGEL) {
		t.Errorf("Score = %+v, want %+v", got, want)
	}
}

func TestScoreCaseSensitive(t *testing.T) {
	got := Score("The cat", "the cat")
	if !approx(got.ROUGE1, 0.5) {
		t.Errorf("ROUGE1 = %v, want 0.5", got.ROUGE1)
	}
}

func TestBLEU(t *testing.T) {
	tests := []struct {
		name     string
		ref, hyp string
		order    int
		want     float64
	}{
		{"clipped", "the cat", "the the the", 1, 1.0 / 3},
		{"brevity", "a b c d", "a b", 1, math.Exp(-1)},
		{"bigram", "a b c d", "a b c d", 2, 1},
		{"no bigram match", "a b c", "c b a", 2, 0},
		{"hyp shorter than order", "a b c", "a", 2, 0},
		{"bad order", "a", "a", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BLEU(Tokenize(tt.ref), Tokenize(tt.hyp), tt.order); !approx(got, tt.want) {
				t.Errorf("BLEU = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRougeN(t *testing.T) {
	tests := []struct {
		name     string
		ref, hyp string
		n        int
		want     PRF
	}{
		{"unigram partial", "a b c d", "a b", 1, PRF{Precision: 1, Recall: 0.5, F1: 2.0 / 3}},
		{"repeats count once", "a a b", "a a a", 1, PRF{Precision: 1, Recall: 0.5, F1: 2.0 / 3}},
		{"distinct unigrams", "the cat the dog", "the the the", 1, PRF{Precision: 1, Recall: 1.0 / 3, F1: 0.5}},
		{"distinct bigrams", "a b a b", "a b", 2, PRF{Precision: 1, Recall: 0.5, F1: 2.0 / 3}},
		{"single token same", "hello", "hello", 2, PRF{Precision: 1, Recall: 1, F1: 1}},
		{"single token differ", "hello", "world", 2, PRF{}},
		{"one side too short", "hello there", "hello", 2, PRF{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RougeN(Tokenize(tt.ref), Tokenize(tt.hyp), tt.n)
			if !approx(got.Precision, tt.want.Precision) || !approx(got.Recall, tt.want.Recall) || !approx(got.F1, tt.want.F1) {
				t.Errorf("RougeN = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRougeL(t *testing.T) {
	got := RougeL(Tokenize("a b c d e"), Tokenize("a x c e"))
	// LCS "a c e" = 3.
	want := PRF{Precision: 0.75, Recall: 0.6, F1: 2 * 0.75 * 0.6 / 1.35}
	if !approx(got.Precision, want.Precision) || !approx(got.Recall, want.Recall) || !approx(got.F1, want.F1) {
		t.Errorf("RougeL = %+v, want %+v", got, want)
	}
}

func TestScoreBounds(t *testing.T) {
	pairs := [][2]string{
		{"I has a apple.", "I have an apple."},
		{"him go store yesterday", "He went to the store yesterday."},
		{"x", "x x x x x x"},
		{"a b c d e f g", "g f e d c b a"},
	}
	for _, p := range pairs {
		r := Score(p[0], p[1])
		for name, v := range map[string]float64{"bleu": r.BLEU, "rouge_1": r.ROUGE1, "rouge_2": r.ROUGE2, "rouge_l": r.ROUGEL} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Errorf("Score(%q, %q).%s = %v, outside [0,1]", p[0], p[1], name, v)
			}
		}
	}
}

func TestScoreSentenceSplitting(t *testing.T) {
	tests := []struct {
		name                string
		original, corrected string
		want                Report
	}{
		{
			name:      "trailing period",
			original:  "He went to school",
			corrected: "He went to school.",
			// BLEU still sees "school." as a different token.
			want: Report{BLEU: 0.75, ROUGE1: 1, ROUGE2: 1, ROUGEL: 1},
		},
		{
			name:      "two sentences",
			original:  "I has a apple. It red",
			corrected: "I have an apple. It is red.",
			want: Report{
				BLEU:   3.0 / 7,
				ROUGE1: 2 * (4.0 / 7) * (4.0 / 6) / (4.0/7 + 4.0/6),
				ROUGE2: 2 * (1.0 / 6) * (1.0 / 5) / (1.0/6 + 1.0/5),
				ROUGEL: 2 * (4.0 / 7) * (4.0 / 6) / (4.0/7 + 4.0/6),
			},
		},
		{
			name:      "only periods",
			original:  "...",
			corrected: "...",
			want:      Report{BLEU: 1, ROUGE1: 1, ROUGE2: 1, ROUGEL: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.original, tt.corrected)
			if !approx(got.BLEU, tt.want.BLEU) || !approx(got.ROUGE1, tt.want.ROUGE1) ||
				!approx(got.ROUGE2, tt.want.ROUGE2) || !approx(got.ROUGEL, tt.want.ROUGEL) {
				t.Errorf("Score = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRougeTokens(t *testing.T) {
	got := RougeTokens("Hi there.  How are you?.Fine")
	want := []string{"Hi", "there", "How", "are", "you?", "Fine"}
	if !slices.Equal(got, want) {
		t.Errorf("RougeTokens = %q, want %q", got, want)
	}
}

func TestNgramKeysDoNotCollide(t *testing.T) {
	ref := []string{"a\x00b", "c"}
	hyp := []string{"a", "b\x00c"}
	if got := RougeN(ref, hyp, 2); got != (PRF{}) {
		t.Errorf("RougeN = %+v, want zero for distinct bigrams", got)
	}
	if got := BLEU(ref, hyp, 2); got != 0 {
		t.Errorf("BLEU = %v, want 0", got)
	}
}
