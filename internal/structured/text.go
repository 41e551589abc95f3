// Package structured holds typed model outputs: word splitting, shape
// attributes, the arithmetic evaluator behind the calculator agent and its
// persisted history.
package structured

import "regexp"

var wordRe = regexp.MustCompile(`\S+|\S`)

// SplitIntoWords splits text on whitespace.
func SplitIntoWords(text string) []string {
	words := wordRe.FindAllString(text, -1)
	if words == nil {
		return []string{}
	}
	return words
}
