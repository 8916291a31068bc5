package scoring

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

type DiffType string

const (
	DiffReplace DiffType = "replace"
	DiffDelete  DiffType = "delete"
	DiffInsert  DiffType = "insert"
)

// Difference is one contiguous hunk where the hypothesis departs from the
// reference. Slices are the hunk's tokens joined by single spaces.
type Difference struct {
	Type            DiffType `json:"type"`
	ReferenceSlice  string   `json:"ground_truth_slice"`
	HypothesisSlice string   `json:"model_cleaned_slice"`
}

// DetailedDiffs compares the raw texts word by word, with punctuation marks
// as separate tokens, and reports every non-matching hunk in order.
// Comparison is case-sensitive.
func DetailedDiffs(reference, hypothesis string) []Difference {
	refTokens, hypTokens := tokenize(reference), tokenize(hypothesis)
	ref, hyp := symbolize(refTokens, hypTokens)
	script := levenshtein.EditScriptForStrings(ref, hyp, unitCost)

	diffs := []Difference{}
	var i, j int
	var refHunk, hypHunk []string
	flush := func() {
		if len(refHunk) == 0 && len(hypHunk) == 0 {
			return
		}
		d := Difference{
			ReferenceSlice:  strings.Join(refHunk, " "),
			HypothesisSlice: strings.Join(hypHunk, " "),
		}
		switch {
		case len(hypHunk) == 0:
			d.Type = DiffDelete
		case len(refHunk) == 0:
			d.Type = DiffInsert
		default:
			d.Type = DiffReplace
		}
		diffs = append(diffs, d)
		refHunk, hypHunk = nil, nil
	}

	for _, op := range script {
		switch op {
		case levenshtein.Match:
			flush()
			i++
			j++
		case levenshtein.Sub:
			refHunk = append(refHunk, refTokens[i])
			hypHunk = append(hypHunk, hypTokens[j])
			i++
			j++
		case levenshtein.Del:
			refHunk = append(refHunk, refTokens[i])
			i++
		case levenshtein.Ins:
			hypHunk = append(hypHunk, hypTokens[j])
			j++
		}
	}
	flush()

	return diffs
}

func tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(text)
	}

	tokens := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		tokens = append(tokens, tok.Text)
	}
	return tokens
}
