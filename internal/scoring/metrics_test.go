package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reference  string
		hypothesis string
		wantWER    float64
		wantCER    float64
	}{
		{name: "both empty", wantWER: 0, wantCER: 0},
		{name: "empty reference", hypothesis: "abc", wantWER: 1, wantCER: 1},
		{name: "empty hypothesis", reference: "abc", wantWER: 1, wantCER: 1},
		{name: "whitespace only on both sides", reference: "  \n\t", hypothesis: " ", wantWER: 0, wantCER: 0},
		{name: "identical", reference: "Il était une fois", hypothesis: "Il était une fois", wantWER: 0, wantCER: 0},
		{name: "one substitution", reference: "the cat sat", hypothesis: "the dog sat", wantWER: 1.0 / 3, wantCER: 3.0 / 11},
		{name: "case and space insensitive", reference: "Hello  World", hypothesis: "hello world", wantWER: 0, wantCER: 0},
		{name: "insertions exceed reference", reference: "a", hypothesis: "a b c d", wantWER: 3, wantCER: 6},
		{name: "one deletion", reference: "a b c d", hypothesis: "a b d", wantWER: 0.25, wantCER: 2.0 / 7},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ComputeMetrics(tt.reference, tt.hypothesis)
			assert.InDelta(t, tt.wantWER, got.WER, 1e-12, "wer")
			assert.InDelta(t, tt.wantCER, got.CER, 1e-12, "cer")
		})
	}
}

func TestComputeMetrics_PunctuationOnlyAffectsCER(t *testing.T) {
	t.Parallel()

	got := ComputeMetrics("Hello  World.", "hello world")
	assert.Equal(t, 0.0, got.WER)
	assert.InDelta(t, 1.0/12, got.CER, 1e-12)
}

func TestComputeMetrics_DegenerateBranchesArePerMetric(t *testing.T) {
	t.Parallel()

	// No words survive punctuation removal, but the characters remain.
	got := ComputeMetrics("...", "")
	assert.Equal(t, 0.0, got.WER)
	assert.Equal(t, 1.0, got.CER)

	got = ComputeMetrics("!!", "?")
	assert.Equal(t, 0.0, got.WER)
	assert.Equal(t, 1.0, got.CER)
}

func TestComputeMetrics_IdentityAfterNormalization(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"x",
		"Chapitre premier.\n\nLe   soleil se levait, lentement…",
		"«Où êtes-vous?» demanda-t-il",
		strings.Repeat("ab ", 200),
	}
	for _, s := range inputs {
		got := ComputeMetrics(s, s)
		assert.Zero(t, got.WER, s)
		assert.Zero(t, got.CER, s)
	}
}

func TestComputeMetrics_NotSymmetric(t *testing.T) {
	t.Parallel()

	a := "the quick brown fox"
	b := "the fox"

	ab := ComputeMetrics(a, b)
	ba := ComputeMetrics(b, a)

	assert.InDelta(t, 0.5, ab.WER, 1e-12)
	assert.InDelta(t, 1.0, ba.WER, 1e-12)
	assert.NotEqual(t, ab.WER, ba.WER)
}

func TestComputeMetrics_Deterministic(t *testing.T) {
	t.Parallel()

	ref := "Le vieux port était désert, et la mer grise."
	hyp := "Le vieux pont etait desert et la mère grise"
	first := ComputeMetrics(ref, hyp)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ComputeMetrics(ref, hyp))
	}
}

func TestTextPairScore(t *testing.T) {
	t.Parallel()

	p := TextPair{Reference: "the cat sat", Hypothesis: "the dog sat"}
	assert.Equal(t, ComputeMetrics(p.Reference, p.Hypothesis), p.Score())
}

func TestScoreAll_PreservesOrder(t *testing.T) {
	t.Parallel()

	pairs := []TextPair{
		{Reference: "a b", Hypothesis: "a b"},
		{Reference: "a b", Hypothesis: "a c"},
		{Reference: "", Hypothesis: "x"},
		{Reference: "a b c d", Hypothesis: "a"},
	}

	got := ScoreAll(pairs)

	assert.Len(t, got, len(pairs))
	for i, p := range pairs {
		assert.Equal(t, p.Score(), got[i], "pair %d", i)
	}
	assert.Empty(t, ScoreAll(nil))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello world", NormalizeWords("  Hello,   World! "))
	assert.Equal(t, "hello, world!", NormalizeChars("  Hello,\n\n  World! "))
	assert.Equal(t, "lhomme", NormalizeWords("L'homme"))
}
