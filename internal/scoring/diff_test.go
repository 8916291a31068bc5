package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailedDiffs_Identical(t *testing.T) {
	t.Parallel()

	assert.Empty(t, DetailedDiffs("the cat sat", "the cat sat"))
	assert.Empty(t, DetailedDiffs("", ""))
}

func TestDetailedDiffs_Replace(t *testing.T) {
	t.Parallel()

	got := DetailedDiffs("the cat sat on the mat", "the dog sat on the mat")

	require.Len(t, got, 1)
	assert.Equal(t, Difference{Type: DiffReplace, ReferenceSlice: "cat", HypothesisSlice: "dog"}, got[0])
}

func TestDetailedDiffs_DeleteAndInsert(t *testing.T) {
	t.Parallel()

	got := DetailedDiffs("a b c d", "a c d e")

	require.Len(t, got, 2)
	assert.Equal(t, Difference{Type: DiffDelete, ReferenceSlice: "b"}, got[0])
	assert.Equal(t, Difference{Type: DiffInsert, HypothesisSlice: "e"}, got[1])
}

func TestDetailedDiffs_CaseSensitive(t *testing.T) {
	t.Parallel()

	got := DetailedDiffs("Paris", "paris")

	require.Len(t, got, 1)
	assert.Equal(t, DiffReplace, got[0].Type)
}

func TestDetailedDiffs_PunctuationIsAToken(t *testing.T) {
	t.Parallel()

	got := DetailedDiffs("Hello, world", "Hello world")

	require.Len(t, got, 1)
	assert.Equal(t, Difference{Type: DiffDelete, ReferenceSlice: ","}, got[0])
}

func TestDetailedDiffs_EmptySides(t *testing.T) {
	t.Parallel()

	got := DetailedDiffs("", "new text")
	require.Len(t, got, 1)
	assert.Equal(t, DiffInsert, got[0].Type)
	assert.Equal(t, "new text", got[0].HypothesisSlice)

	got = DetailedDiffs("old text", "")
	require.Len(t, got, 1)
	assert.Equal(t, DiffDelete, got[0].Type)
}
