// Package validator checks submitted collections before indexing. It parses
// raw JSON once into typed Documents and reports a single verdict for the
// whole collection.
package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
)

// Result is the verdict for a submitted collection.
type Result int

const (
	Valid Result = iota
	Invalid
	Empty
	Malformed
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Empty:
		return "empty"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

var namePattern = regexp.MustCompile(`(?i)^\w+\.json$`)

// MalformedError lists the positions of documents that failed validation.
type MalformedError struct {
	Positions []int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%d malformed document(s) at positions %v", len(e.Positions), e.Positions)
}

func (e *MalformedError) Unwrap() error {
	return apperrors.ErrContentMalformed
}

// ValidateName returns the collection name if name is a string of word
// characters followed by ".json".
func ValidateName(name any) (string, error) {
	s, ok := name.(string)
	if !ok || !namePattern.MatchString(s) {
		return "", apperrors.ErrNameInvalid
	}
	return s, nil
}

// ValidateCollection checks content in priority order: not an array, empty
// array, malformed documents. On success it returns the decoded documents.
func ValidateCollection(content json.RawMessage) ([]ingestion.Document, Result, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, Invalid, apperrors.ErrContentInvalid
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, Invalid, apperrors.ErrContentInvalid
	}
	if len(elems) == 0 {
		return nil, Empty, apperrors.ErrContentEmpty
	}

	docs := make([]ingestion.Document, 0, len(elems))
	var bad []int
	for i, elem := range elems {
		doc, ok := CheckDocument(elem)
		if !ok {
			bad = append(bad, i)
			continue
		}
		docs = append(docs, doc)
	}
	if len(bad) > 0 {
		return nil, Malformed, &MalformedError{Positions: bad}
	}
	return docs, Valid, nil
}

// CheckDocument reports whether raw is an object with exactly the keys
// "title" and "text", both holding strings with at least one word character.
func CheckDocument(raw json.RawMessage) (ingestion.Document, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ingestion.Document{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return ingestion.Document{}, false
	}
	if len(fields) != 2 {
		return ingestion.Document{}, false
	}
	title, ok := stringField(fields, "title")
	if !ok {
		return ingestion.Document{}, false
	}
	text, ok := stringField(fields, "text")
	if !ok {
		return ingestion.Document{}, false
	}
	return ingestion.Document{Title: title, Text: text}, true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	if strings.TrimSpace(s) == "" || !tokenizer.HasWord(s) {
		return "", false
	}
	return s, true
}
