// Package tokenizer turns raw text into the canonical lowercase word tokens
// stored in an index. Word characters are ASCII letters, digits and
// underscore; every other run of characters separates tokens.
package tokenizer

import (
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion"
)

var nonWord = regexp.MustCompile(`\W+`)

// Normalize collapses every run of non-word characters into a single space,
// trims the result and lowercases it. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(nonWord.ReplaceAllString(text, " ")))
}

// Tokenize normalizes text and splits it on whitespace. Repeated words yield
// repeated tokens. Text without any word character yields no tokens.
func Tokenize(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

// TokenizeDocument tokenizes the document body. Titles are not indexed.
func TokenizeDocument(doc ingestion.Document) []string {
	return Tokenize(doc.Text)
}

// IsPhrase reports whether an already normalized term holds more than one
// word.
func IsPhrase(normalized string) bool {
	return strings.Contains(normalized, " ")
}

// HasWord reports whether text contains at least one word character.
func HasWord(text string) bool {
	return Normalize(text) != ""
}
