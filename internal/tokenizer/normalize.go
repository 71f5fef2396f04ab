package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalizer approximates the SentencePiece "nmt_nfkc" rule set with
// x/text NFKC plus the NMT whitespace and control-character mapping.
// The precompiled charsmap itself is not interpreted.
type normalizer struct {
	nfkc                   bool
	addDummyPrefix         bool
	removeExtraWhitespaces bool
	escapeWhitespaces      bool
}

func newNormalizer(mp *ModelProto) normalizer {
	name := mp.NormalizerName
	return normalizer{
		nfkc:                   strings.Contains(name, "nfkc") || (name == "" && len(mp.PrecompiledCharsmap) > 0),
		addDummyPrefix:         mp.AddDummyPrefix,
		removeExtraWhitespaces: mp.RemoveExtraWhitespaces,
		escapeWhitespaces:      mp.EscapeWhitespaces,
	}
}

func (n normalizer) normalize(s string) string {
	if n.nfkc {
		s = norm.NFKC.String(s)
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return r
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), r == '\u200b', r == '\ufeff':
			return -1
		}
		return r
	}, s)
	if n.removeExtraWhitespaces {
		s = strings.Join(strings.Fields(s), " ")
	}
	if s == "" {
		return ""
	}
	if n.addDummyPrefix {
		s = " " + s
	}
	if n.escapeWhitespaces {
		s = strings.ReplaceAll(s, " ", spaceSymbol)
	}
	return s
}
