package search

import (
	"strings"
	"unicode"
)

// stopWords never count toward a verbatim match.
var stopWords = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(`
		a an and are as at be but by do for from have how in is it
		not of on or that the this to was what with you`) {
		set[w] = struct{}{}
	}
	return set
}()

// terms splits text into lowercase words on anything that is not a letter
// or digit, skipping stop words. Markup such as "#", "*" and backticks
// therefore never sticks to a word.
func terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// containsAllQueryWords reports whether every meaningful query word occurs
// in document. A query made only of stop words never matches.
func containsAllQueryWords(document, query string) bool {
	want := terms(query)
	if len(want) == 0 {
		return false
	}
	have := make(map[string]struct{})
	for _, w := range terms(document) {
		have[w] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}
