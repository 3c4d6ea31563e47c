// Package index holds the per-collection inverted index: a map from
// normalized token to the positions of the documents whose text contains it.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion"
)

// Index maps a token to its posting list. It marshals to the JSON object
// clients receive and send back, e.g. {"the":[0,1],"cat":[0]}.
type Index map[string]PostingList

// Build folds docs into a fresh Index. Document positions are their
// 0-based order in docs, so every posting list is ascending.
func Build(docs []ingestion.Document) Index {
	idx := make(Index)
	for i, doc := range docs {
		idx.AddDocument(i, tokenizer.TokenizeDocument(doc))
	}
	return idx
}

// AddDocument records docIndex under each of tokens, once per token.
func (idx Index) AddDocument(docIndex int, tokens []string) {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		idx[token] = idx[token].Add(docIndex)
	}
}

// Lookup returns the posting list for token, or an empty non-nil list.
func (idx Index) Lookup(token string) PostingList {
	if postings, ok := idx[token]; ok && postings != nil {
		return postings
	}
	return PostingList{}
}

// Terms returns the indexed tokens in lexical order.
func (idx Index) Terms() []string {
	terms := make([]string, 0, len(idx))
	for term := range idx {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
