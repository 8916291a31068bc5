package textkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	t.Parallel()

	a := Key("Mistral", "Il était une fois")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("Mistral", "Il était une fois"))
	assert.NotEqual(t, a, Key("Gemini-1.5-Flash", "Il était une fois"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestShort(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("x")[:16], Short("x"))
}
