package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reference  string
		hypothesis string
		want       WordAlignment
	}{
		{
			name:       "substitution",
			reference:  "the cat sat",
			hypothesis: "The dog sat.",
			want:       WordAlignment{Hits: 2, Substitutions: 1, ReferenceWords: 3, HypothesisWords: 3},
		},
		{
			name:       "deletion",
			reference:  "a b c d",
			hypothesis: "a b d",
			want:       WordAlignment{Hits: 3, Deletions: 1, ReferenceWords: 4, HypothesisWords: 3},
		},
		{
			name:       "insertions",
			reference:  "a",
			hypothesis: "a b c",
			want:       WordAlignment{Hits: 1, Insertions: 2, ReferenceWords: 1, HypothesisWords: 3},
		},
		{
			name: "empty",
			want: WordAlignment{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AlignWords(tt.reference, tt.hypothesis))
		})
	}
}

func TestAlignWords_ErrorsMatchWER(t *testing.T) {
	t.Parallel()

	ref := "le navire entra dans le port de marseille"
	hyp := "le navire entre dans port de la marseille ville"

	a := AlignWords(ref, hyp)
	assert.InDelta(t, WER(ref, hyp), float64(a.Errors())/float64(a.ReferenceWords), 1e-12)
}
