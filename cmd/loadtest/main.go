// Command loadtest creates a small collection through POST /api/create and
// then replays term lists against POST /api/search from several workers,
// printing throughput, cache hit ratio, latency percentiles and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

const collectionName = "loadtest.json"

type book struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

var books = []book{
	{"Alice in Wonderland", "Alice was beginning to get very tired of sitting by her sister on the bank"},
	{"Through the Looking-Glass", "One thing was certain, that the white kitten had had nothing to do with it"},
	{"The Hunting of the Snark", "Just the place for a Snark! the Bellman cried"},
	{"Sylvie and Bruno", "Less bread! More taxes! and then all the people cheered again"},
	{"Phantasmagoria", "One winter night, at half-past nine, cold, tired, and cross"},
}

var termLists = []string{
	"alice",
	"the",
	"white kitten",
	"snark, bellman",
	"tired, the bank",
	"more taxes",
	"winter night",
	"looking, glass",
	"unicorn",
	"sister, kitten, snark",
}

// tally is owned by one worker until the run ends.
type tally struct {
	sent      int
	failed    int
	cacheHits int
	latencies []time.Duration
	codes     map[int]int
}

func (t *tally) merge(o *tally) {
	t.sent += o.sent
	t.failed += o.failed
	t.cacheHits += o.cacheHits
	t.latencies = append(t.latencies, o.latencies...)
	for code, n := range o.codes {
		t.codes[code] += n
	}
}

func newTally() *tally { return &tally{codes: make(map[int]int)} }

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the service")
	workers := flag.Int("concurrency", 10, "concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "how long to send requests")
	flag.Parse()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: *workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fmt.Printf("target=%s workers=%d duration=%s term-lists=%d\n", *baseURL, *workers, *duration, len(termLists))

	index, err := createIndex(client, *baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", collectionName, err)
		os.Exit(1)
	}

	total := run(client, *baseURL, index, *workers, *duration)
	report(os.Stdout, total, *duration)
	if total.sent == 0 {
		fmt.Fprintln(os.Stderr, "no requests completed; is the service up?")
		os.Exit(1)
	}
}

// createIndex stores the fixture collection and returns the store snapshot
// that each search request carries as its index.
func createIndex(client *http.Client, baseURL string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{"fileName": collectionName, "fileContent": books})
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(baseURL+"/api/create", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func run(client *http.Client, baseURL string, index json.RawMessage, workers int, d time.Duration) *tally {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	tallies := make([]*tally, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		tallies[w] = newTally()
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				search(ctx, client, baseURL, index, termLists[i%len(termLists)], tallies[w])
			}
			return nil
		})
	}
	_ = g.Wait()

	total := newTally()
	for _, t := range tallies {
		total.merge(t)
	}
	return total
}

func search(ctx context.Context, client *http.Client, baseURL string, index json.RawMessage, terms string, t *tally) {
	payload, _ := json.Marshal(map[string]any{"index": index, "terms": terms})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/search", bytes.NewReader(payload))
	if err != nil {
		t.failed++
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		// requests cut off by the end of the run are not failures
		if ctx.Err() == nil {
			t.sent++
			t.failed++
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	t.sent++
	t.codes[resp.StatusCode]++
	t.latencies = append(t.latencies, elapsed)
	if resp.StatusCode != http.StatusOK {
		t.failed++
	}
	switch resp.Header.Get("X-Cache") {
	case "local", "remote":
		t.cacheHits++
	}
}

func report(w io.Writer, t *tally, d time.Duration) {
	fmt.Fprintf(w, "\nrequests   %d (%.1f/s)\n", t.sent, float64(t.sent)/d.Seconds())
	if t.sent > 0 {
		fmt.Fprintf(w, "failed     %d (%.2f%%)\n", t.failed, 100*float64(t.failed)/float64(t.sent))
		fmt.Fprintf(w, "cache hits %d (%.2f%%)\n", t.cacheHits, 100*float64(t.cacheHits)/float64(t.sent))
	}

	if len(t.latencies) > 0 {
		slices.Sort(t.latencies)
		fmt.Fprintln(w, "\nlatency")
		for _, p := range []float64{50, 90, 95, 99, 100} {
			fmt.Fprintf(w, "  p%-4g %s\n", p, percentile(t.latencies, p))
		}
	}

	if len(t.codes) > 0 {
		fmt.Fprintln(w, "\nstatus")
		codes := make([]int, 0, len(t.codes))
		for code := range t.codes {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d %d\n", code, t.codes[code])
		}
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(p / 100 * float64(len(sorted)))
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
