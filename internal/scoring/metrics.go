// Package scoring computes word and character error rates between a
// ground-truth reference and a cleaned hypothesis.
package scoring

import (
	"runtime"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/sync/errgroup"
)

// TextPair is one reference/hypothesis comparison.
type TextPair struct {
	Reference  string `json:"reference"`
	Hypothesis string `json:"hypothesis"`
}

// MetricResult holds error rates as fractions of the reference length.
// Values above 1.0 occur when the hypothesis carries many insertions.
type MetricResult struct {
	WER float64 `json:"wer"`
	CER float64 `json:"cer"`
}

var unitCost = levenshtein.DefaultOptionsWithSub

// ComputeMetrics scores hypothesis against reference. It never fails: when
// either side normalizes to nothing the result is 0 if both are empty and 1
// otherwise, decided separately for WER and CER.
func ComputeMetrics(reference, hypothesis string) MetricResult {
	return MetricResult{
		WER: WER(reference, hypothesis),
		CER: CER(reference, hypothesis),
	}
}

func (p TextPair) Score() MetricResult {
	return ComputeMetrics(p.Reference, p.Hypothesis)
}

// WER is the word-level edit distance over the reference token count, after
// lower-casing, punctuation removal and whitespace collapsing.
func WER(reference, hypothesis string) float64 {
	ref, hyp := symbolize(wordTokens(reference), wordTokens(hypothesis))
	if rate, ok := degenerate(len(ref), len(hyp)); ok {
		return rate
	}
	return float64(levenshtein.DistanceForStrings(ref, hyp, unitCost)) / float64(len(ref))
}

// CER is the character-level edit distance over the reference rune count,
// after lower-casing and whitespace collapsing.
func CER(reference, hypothesis string) float64 {
	ref, hyp := charUnits(reference), charUnits(hypothesis)
	if rate, ok := degenerate(len(ref), len(hyp)); ok {
		return rate
	}
	return float64(levenshtein.DistanceForStrings(ref, hyp, unitCost)) / float64(len(ref))
}

func degenerate(refLen, hypLen int) (float64, bool) {
	switch {
	case refLen == 0 && hypLen == 0:
		return 0, true
	case refLen == 0 || hypLen == 0:
		return 1, true
	default:
		return 0, false
	}
}

// ScoreAll scores pairs concurrently and returns results in input order.
func ScoreAll(pairs []TextPair) []MetricResult {
	results := make([]MetricResult, len(pairs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range pairs {
		i := i
		g.Go(func() error {
			results[i] = pairs[i].Score()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
