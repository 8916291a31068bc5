// Package preclean applies literal OCR repair rules before text is sent to a
// cleaning model.
package preclean

import "strings"

// Rule replaces every occurrence of Old with New.
type Rule struct {
	Name string
	Old  string
	New  string
}

// DefaultRules are applied in order. Hyphenated line breaks are joined before
// the bare "- " rule so the newline is consumed with the hyphen.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "hyphen-paragraph-break", Old: "-\n\n", New: ""},
		{Name: "hyphen-line-break", Old: "-\n", New: ""},
		{Name: "hyphen-space-line-break", Old: "- \n", New: ""},
		{Name: "double-space", Old: "  ", New: " "},
		{Name: "e-acute-to-grave", Old: "é", New: "è"},
		{Name: "hyphen-space", Old: "- ", New: ""},
		{Name: "typographic-apostrophe", Old: "'", New: "’"},
	}
}

type Cleaner struct {
	rules    []Rule
	replacer *strings.Replacer
}

// New builds a Cleaner from rules. A nil slice means DefaultRules.
func New(rules []Rule) *Cleaner {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Cleaner{rules: rules}
}

// Without returns a Cleaner over the default rules minus the named ones.
func Without(names ...string) *Cleaner {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}

	rules := []Rule{}
	for _, r := range DefaultRules() {
		if !skip[r.Name] {
			rules = append(rules, r)
		}
	}
	return New(rules)
}

func (c *Cleaner) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Apply runs each rule over the whole text in sequence, then collapses any
// double spaces the rules produced.
func (c *Cleaner) Apply(text string) string {
	for _, r := range c.rules {
		if r.Old == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.Old, r.New)
	}
	return strings.ReplaceAll(text, "  ", " ")
}

var defaultCleaner = New(nil)

// Apply runs the default rules.
func Apply(text string) string {
	return defaultCleaner.Apply(text)
}
