// Package score computes surface-overlap quality metrics between an original
// text and its correction: sentence BLEU and ROUGE-1, ROUGE-2 and ROUGE-L F1.
package score

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// DefaultBLEUOrder is the n-gram order Score uses for BLEU.
const DefaultBLEUOrder = 1

// Report holds the four metrics for one (original, corrected) pair.
type Report struct {
	BLEU   float64 `json:"bleu"`
	ROUGE1 float64 `json:"rouge_1"`
	ROUGE2 float64 `json:"rouge_2"`
	ROUGEL float64 `json:"rouge_l"`
}

// PRF is a precision/recall/F1 triple.
type PRF struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Tokenize splits on whitespace. Matching is case-sensitive.
func Tokenize(s string) []string { return strings.Fields(s) }

// RougeTokens splits s into sentences on "." and each sentence on
// whitespace, so sentence-final periods never attach to a token.
func RougeTokens(s string) []string {
	var out []string
	for _, sentence := range strings.Split(s, ".") {
		out = append(out, strings.Fields(sentence)...)
	}
	return out
}

// Score compares corrected against original. Any empty side yields all zeros.
// BLEU runs on whitespace tokens, ROUGE on RougeTokens. Text made only of
// periods falls back to whitespace tokens for ROUGE.
func Score(original, corrected string) Report {
	ref, hyp := Tokenize(original), Tokenize(corrected)
	if len(ref) == 0 || len(hyp) == 0 {
		return Report{}
	}
	rref, rhyp := RougeTokens(original), RougeTokens(corrected)
	if len(rref) == 0 || len(rhyp) == 0 {
		rref, rhyp = ref, hyp
	}
	return Report{
		BLEU:   BLEU(ref, hyp, DefaultBLEUOrder),
		ROUGE1: RougeN(rref, rhyp, 1).F1,
		ROUGE2: RougeN(rref, rhyp, 2).F1,
		ROUGEL: RougeL(rref, rhyp).F1,
	}
}

// BLEU is single-reference sentence BLEU with uniform weights over orders
// 1..maxOrder and the exp(1 - r/c) brevity penalty.
func BLEU(reference, hypothesis []string, maxOrder int) float64 {
	if len(reference) == 0 || len(hypothesis) == 0 || maxOrder < 1 {
		return 0
	}
	var logSum float64
	for n := 1; n <= maxOrder; n++ {
		hypCounts := ngrams(hypothesis, n)
		total := len(hypothesis) - n + 1
		if total <= 0 {
			return 0
		}
		overlap := clippedOverlap(ngrams(reference, n), hypCounts)
		if overlap == 0 {
			return 0
		}
		logSum += math.Log(float64(overlap) / float64(total))
	}

	c, r := float64(len(hypothesis)), float64(len(reference))
	bp := 1.0
	if c < r {
		bp = math.Exp(1 - r/c)
	}
	return bp * math.Exp(logSum/float64(maxOrder))
}

// RougeN scores overlap between the distinct n-grams of each side: repeats
// count once. When neither side is long enough to hold an n-gram, identical
// sequences score 1 and anything else 0.
func RougeN(reference, hypothesis []string, n int) PRF {
	if len(reference) == 0 || len(hypothesis) == 0 || n < 1 {
		return PRF{}
	}
	refTotal, hypTotal := len(reference)-n+1, len(hypothesis)-n+1
	if refTotal <= 0 && hypTotal <= 0 {
		if slices.Equal(reference, hypothesis) {
			return PRF{Precision: 1, Recall: 1, F1: 1}
		}
		return PRF{}
	}
	if refTotal <= 0 || hypTotal <= 0 {
		return PRF{}
	}
	refSet, hypSet := ngrams(reference, n), ngrams(hypothesis, n)
	overlap := 0
	for g := range hypSet {
		if _, ok := refSet[g]; ok {
			overlap++
		}
	}
	return prf(float64(overlap), float64(len(hypSet)), float64(len(refSet)))
}

// RougeL scores the longest common subsequence of tokens.
func RougeL(reference, hypothesis []string) PRF {
	if len(reference) == 0 || len(hypothesis) == 0 {
		return PRF{}
	}
	return prf(float64(lcs(reference, hypothesis)), float64(len(hypothesis)), float64(len(reference)))
}

func prf(overlap, hypTotal, refTotal float64) PRF {
	if overlap == 0 {
		return PRF{}
	}
	p, r := overlap/hypTotal, overlap/refTotal
	return PRF{Precision: p, Recall: r, F1: 2 * p * r / (p + r)}
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[ngramKey(tokens[i:i+n])]++
	}
	return counts
}

// ngramKey length-prefixes each token so no separator byte can make two
// different n-grams collide.
func ngramKey(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(strconv.Itoa(len(t)))
		b.WriteByte(':')
		b.WriteString(t)
	}
	return b.String()
}

func clippedOverlap(ref, hyp map[string]int) int {
	total := 0
	for g, c := range hyp {
		total += min(c, ref[g])
	}
	return total
}

func lcs(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
