// Package executor answers term and phrase queries against a set of
// collection indexes supplied by the caller.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/tracing"
)

// Result groups postings by collection name, then by normalized term.
type Result map[string]map[string]index.PostingList

// TotalHits counts the postings across every collection and term.
func (r Result) TotalHits() int {
	n := 0
	for _, terms := range r {
		for _, postings := range terms {
			n += len(postings)
		}
	}
	return n
}

// Search looks up every flattened term in each collection in scope. A
// non-empty name restricts the scope to that collection; a name missing from
// indexes is searched as an empty index.
func Search(indexes map[string]index.Index, name string, terms ...parser.Term) (Result, error) {
	if len(indexes) == 0 {
		return nil, apperrors.ErrIndexInvalid
	}
	flat := parser.Flatten(terms...)
	if len(flat) == 0 {
		return nil, apperrors.ErrTermsEmpty
	}

	scope := indexes
	if name != "" {
		scope = map[string]index.Index{name: indexes[name]}
	}

	result := make(Result, len(scope))
	for collection, idx := range scope {
		found := make(map[string]index.PostingList, len(flat))
		for _, term := range flat {
			normalized := tokenizer.Normalize(term)
			if tokenizer.IsPhrase(normalized) {
				found[normalized] = MultiTermSearch(idx, normalized)
				continue
			}
			found[normalized] = idx.Lookup(normalized).Clone()
		}
		result[collection] = found
	}
	return result, nil
}

// MultiTermSearch returns, in ascending order, the documents that contain
// every word of phrase. Posting lists never repeat a document, so a document
// seen once per word contains all of them.
func MultiTermSearch(idx index.Index, phrase string) index.PostingList {
	words := strings.Split(phrase, " ")
	counts := make(map[int]int)
	for _, word := range words {
		for _, docIndex := range idx.Lookup(word) {
			counts[docIndex]++
		}
	}
	matched := make(index.PostingList, 0, len(counts))
	for docIndex, count := range counts {
		if count == len(words) {
			matched = append(matched, docIndex)
		}
	}
	sort.Ints(matched)
	return matched
}

// ParseIndexPayload decodes the index object of a search request. The
// payload must be a non-empty JSON object whose values are term to
// document-index maps. A non-empty name narrows the result to that one
// collection, and only its value has to be well-formed.
func ParseIndexPayload(raw json.RawMessage, name string) (map[string]index.Index, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, apperrors.ErrIndexInvalid
	}
	var collections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &collections); err != nil || len(collections) == 0 {
		return nil, apperrors.ErrIndexInvalid
	}
	if name != "" {
		collections = map[string]json.RawMessage{name: collections[name]}
	}

	indexes := make(map[string]index.Index, len(collections))
	for collection, value := range collections {
		idx := index.Index{}
		if len(value) > 0 {
			if err := json.Unmarshal(value, &idx); err != nil {
				return nil, apperrors.ErrIndexInvalid
			}
		}
		if idx == nil {
			idx = index.Index{}
		}
		indexes[collection] = idx
	}
	return indexes, nil
}

// Query is one search request after decoding.
type Query struct {
	Indexes  map[string]index.Index
	FileName string
	Terms    []parser.Term
}

// Executor runs queries with tracing and metrics around Search.
type Executor struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor. m may be nil.
func New(m *metrics.Metrics) *Executor {
	return &Executor{
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, q Query) (Result, error) {
	_, span := tracing.StartChildSpan(ctx, "executor.search")
	defer span.End()
	start := time.Now()

	result, err := Search(q.Indexes, q.FileName, q.Terms...)
	if err != nil {
		span.SetAttr("error", apperrors.Reason(err))
		return nil, err
	}

	terms := len(parser.Flatten(q.Terms...))
	hits := result.TotalHits()
	span.SetAttr("collections", len(result))
	span.SetAttr("terms", terms)
	span.SetAttr("hits", hits)
	if e.metrics != nil {
		e.metrics.SearchTermsCount.Observe(float64(terms))
	}
	e.logger.Debug("query executed",
		"file_name", q.FileName,
		"collections", len(result),
		"terms", terms,
		"hits", hits,
		"duration", time.Since(start),
	)
	return result, nil
}
