package preclean

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "hyphenated line break", in: "il bu-\nrattino", want: "il burattino"},
		{name: "hyphen before blank line", in: "pen-\n\ntola", want: "pentola"},
		{name: "hyphen space newline", in: "cat- \ntiva", want: "cattiva"},
		{name: "double spaces", in: "Geppetto,  tornato  a  casa", want: "Geppetto, tornato a casa"},
		{name: "accent", in: "perché", want: "perchè"},
		{name: "apostrophe", in: "l'elemosina", want: "l’elemosina"},
		{name: "four spaces collapse", in: "a    b", want: "a b"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Apply(tt.in))
		})
	}
}

func TestWithout(t *testing.T) {
	t.Parallel()

	c := Without("e-acute-to-grave", "typographic-apostrophe")

	assert.Equal(t, "perché l'uomo", c.Apply("perché  l'uomo"))
	assert.Len(t, c.Rules(), len(DefaultRules())-2)
}

func TestNew_CustomRules(t *testing.T) {
	t.Parallel()

	c := New([]Rule{{Name: "ih", Old: "IH.", New: "III."}, {Name: "noop"}})

	assert.Equal(t, "III. Geppetto", c.Apply("IH. Geppetto"))
}
