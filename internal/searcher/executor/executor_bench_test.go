package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/parser"
)

func benchIndexes(collections, docs int) map[string]index.Index {
	indexes := make(map[string]index.Index, collections)
	for c := 0; c < collections; c++ {
		batch := make([]ingestion.Document, docs)
		for d := range batch {
			batch[d] = ingestion.Document{
				Title: fmt.Sprintf("book %d", d),
				Text:  fmt.Sprintf("the white rabbit ran past alice in chapter %d of the story", d%20),
			}
		}
		indexes[fmt.Sprintf("c%d.json", c)] = index.Build(batch)
	}
	return indexes
}

// BenchmarkMultiTermSearch measures phrase matching as the collection grows.
func BenchmarkMultiTermSearch(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		idx := benchIndexes(1, n)["c0.json"]
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = MultiTermSearch(idx, "white rabbit alice")
			}
		})
	}
}

// BenchmarkSearchCollections measures a mixed term list across a growing
// number of collections.
func BenchmarkSearchCollections(b *testing.B) {
	terms := parser.ParseList("the, white rabbit, chapter, unicorn")
	for _, collections := range []int{1, 4, 16} {
		indexes := benchIndexes(collections, 1000)
		b.Run(fmt.Sprintf("collections_%d", collections), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Search(indexes, "", terms...); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkExecuteParallel measures concurrent searches over shared indexes.
func BenchmarkExecuteParallel(b *testing.B) {
	exec := New(nil)
	q := Query{Indexes: benchIndexes(8, 1000), Terms: parser.Strings("white rabbit", "alice")}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := exec.Execute(context.Background(), q); err != nil {
				b.Fatal(err)
			}
		}
	})
}
