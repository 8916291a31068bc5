package scoring

import "github.com/texttheater/golang-levenshtein/levenshtein"

// WordAlignment breaks a word-level comparison down into edit operations.
type WordAlignment struct {
	Hits            int `json:"hits"`
	Substitutions   int `json:"substitutions"`
	Deletions       int `json:"deletions"`
	Insertions      int `json:"insertions"`
	ReferenceWords  int `json:"reference_words"`
	HypothesisWords int `json:"hypothesis_words"`
}

// Errors is the edit distance the alignment represents.
func (a WordAlignment) Errors() int {
	return a.Substitutions + a.Deletions + a.Insertions
}

// AlignWords counts the operations of one optimal word-level edit script over
// the same normalized tokens WER uses.
func AlignWords(reference, hypothesis string) WordAlignment {
	ref, hyp := symbolize(wordTokens(reference), wordTokens(hypothesis))
	a := WordAlignment{ReferenceWords: len(ref), HypothesisWords: len(hyp)}

	for _, op := range levenshtein.EditScriptForStrings(ref, hyp, unitCost) {
		switch op {
		case levenshtein.Match:
			a.Hits++
		case levenshtein.Sub:
			a.Substitutions++
		case levenshtein.Del:
			a.Deletions++
		case levenshtein.Ins:
			a.Insertions++
		}
	}
	return a
}
