// Package analytics records what the service does: every index creation and
// every search becomes an event that is published (to Kafka or in-process)
// and folded into running totals by the Aggregator.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/kafka"
)

type EventType string

const (
	EventIndexCreate EventType = "index_create"
	EventSearch      EventType = "search"
)

// IndexEvent describes one create request, successful or not.
type IndexEvent struct {
	Type      EventType `json:"type"`
	FileName  string    `json:"file_name"`
	Result    string    `json:"result"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	LatencyMs float64   `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// SearchEvent describes one search request. Terms are the flattened,
// normalized terms that were looked up.
type SearchEvent struct {
	Type        EventType `json:"type"`
	FileName    string    `json:"file_name,omitempty"`
	Terms       []string  `json:"terms"`
	Collections int       `json:"collections"`
	TotalHits   int       `json:"total_hits"`
	Result      string    `json:"result"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMs   float64   `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

type envelope struct {
	Type EventType `json:"type"`
}

// Decode reads the type field of an encoded event and returns the matching
// *IndexEvent or *SearchEvent.
func Decode(value []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	switch env.Type {
	case EventIndexCreate:
		event, err := kafka.DecodeJSON[IndexEvent](value)
		if err != nil {
			return nil, err
		}
		return &event, nil
	case EventSearch:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return nil, err
		}
		return &event, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func eventKey(event any) string {
	switch e := event.(type) {
	case IndexEvent:
		return e.FileName
	case *IndexEvent:
		return e.FileName
	case SearchEvent:
		return e.FileName
	case *SearchEvent:
		return e.FileName
	default:
		return "analytics"
	}
}
