package scoring

import (
	"strings"
	"unicode"
)

// wordTokens lower-cases s, drops every Unicode punctuation rune and splits
// the remainder on whitespace runs.
func wordTokens(s string) []string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(stripped)
}

// charUnits lower-cases s and collapses whitespace runs to a single space.
// Punctuation is kept.
func charUnits(s string) []rune {
	return []rune(strings.Join(strings.Fields(strings.ToLower(s)), " "))
}

// NormalizeWords returns the form WER is computed over, joined by spaces.
func NormalizeWords(s string) string {
	return strings.Join(wordTokens(s), " ")
}

// NormalizeChars returns the form CER is computed over.
func NormalizeChars(s string) string {
	return string(charUnits(s))
}

// symbolize maps two token sequences onto a shared rune alphabet so that
// rune-based edit distance can run over words.
func symbolize(ref, hyp []string) ([]rune, []rune) {
	vocab := make(map[string]rune, len(ref)+len(hyp))
	encode := func(tokens []string) []rune {
		out := make([]rune, len(tokens))
		for i, tok := range tokens {
			sym, ok := vocab[tok]
			if !ok {
				sym = rune(len(vocab))
				vocab[tok] = sym
			}
			out[i] = sym
		}
		return out
	}
	return encode(ref), encode(hyp)
}
