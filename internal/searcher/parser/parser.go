// Package parser turns the terms of a search request into Terms. A term is
// either a single string or an arbitrarily nested list of terms; Flatten
// reduces any mix of them to the ordered list the executor looks up.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ListSeparator splits the terms string of an HTTP search request.
const ListSeparator = ", "

// Term is a Leaf or a Nested list.
type Term interface {
	appendTo(dst []string) []string
}

// Leaf is a single search term, possibly a multi-word phrase.
type Leaf string

// Nested groups terms; nesting depth is irrelevant to the search.
type Nested []Term

func (l Leaf) appendTo(dst []string) []string {
	return append(dst, string(l))
}

func (n Nested) appendTo(dst []string) []string {
	for _, t := range n {
		if t == nil {
			continue
		}
		dst = t.appendTo(dst)
	}
	return dst
}

// Flatten returns the leaves of terms depth-first, in order.
func Flatten(terms ...Term) []string {
	var out []string
	for _, t := range terms {
		if t == nil {
			continue
		}
		out = t.appendTo(out)
	}
	return out
}

// Strings wraps plain strings as Leaf terms.
func Strings(ss ...string) []Term {
	terms := make([]Term, 0, len(ss))
	for _, s := range ss {
		terms = append(terms, Leaf(s))
	}
	return terms
}

// ParseList splits a comma-space delimited terms string. An empty string
// yields no terms.
func ParseList(s string) []Term {
	if s == "" {
		return nil
	}
	return Strings(strings.Split(s, ListSeparator)...)
}

// FromJSON reads the terms field of a search request. A JSON string is split
// with ParseList; an array may nest further arrays of strings. An absent or
// null field yields no terms.
func FromJSON(raw json.RawMessage) ([]Term, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding terms string: %w", err)
		}
		return ParseList(s), nil
	case '[':
		nested, err := decodeNested(raw)
		if err != nil {
			return nil, err
		}
		return []Term(nested), nil
	default:
		return nil, fmt.Errorf("terms must be a string or an array of strings")
	}
}

func decodeNested(raw json.RawMessage) (Nested, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decoding terms array: %w", err)
	}
	nested := make(Nested, 0, len(elems))
	for _, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 {
			continue
		}
		switch elem[0] {
		case '"':
			var s string
			if err := json.Unmarshal(elem, &s); err != nil {
				return nil, fmt.Errorf("decoding term: %w", err)
			}
			nested = append(nested, Leaf(s))
		case '[':
			inner, err := decodeNested(elem)
			if err != nil {
				return nil, err
			}
			nested = append(nested, inner)
		default:
			return nil, fmt.Errorf("term %s is not a string", elem)
		}
	}
	return nested, nil
}
