package tokenizer

import (
	"regexp"
	"sort"
	"strings"
)

// nonWordRegex matches sequences of characters that are neither letters nor digits, in any script.
var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Tokenize converts a string into a slice of tokens.
// It lowercases the string and splits it on anything that is not a letter or a digit.
// Token order follows the text, so a token's index is its position.
func Tokenize(text string) []string {
	lowerText := strings.ToLower(text)
	split := nonWordRegex.Split(lowerText, -1)

	tokens := make([]string, 0, len(split)) // Initialize as empty slice, not nil
	for _, s := range split {
		if s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens
}

// SortedJoin tokenizes text, sorts the tokens and joins them with single spaces.
// Two titles that differ only in word order, case or punctuation produce the same string.
func SortedJoin(text string) string {
	tokens := Tokenize(text)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Unique returns the distinct tokens of text in order of first appearance.
func Unique(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}
	return unique
}
