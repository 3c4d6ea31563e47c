// Package aggregator keeps analytics totals across restarts by writing
// periodic snapshots to PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/postgres"
)

const (
	createTable = `
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	insertSnapshot = `INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	pruneSnapshots = `
DELETE FROM analytics_snapshots
WHERE id NOT IN (SELECT id FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1)`
	selectNewest = `SELECT data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`
)

type Store struct {
	db     *postgres.Client
	retain int
	log    *slog.Logger
}

// NewStore keeps at most retain snapshots; retain <= 0 keeps all of them.
func NewStore(db *postgres.Client, retain int) *Store {
	return &Store{db: db, retain: retain, log: slog.Default().With("component", "analytics-store")}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create analytics_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot writes stats and trims old rows in a single transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSnapshot, data, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if s.retain > 0 {
			if _, err := tx.ExecContext(ctx, pruneSnapshots, s.retain); err != nil {
				return fmt.Errorf("prune snapshots: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug("snapshot saved", "searches", stats.TotalSearches, "indexes", stats.IndexesCreated)
	return nil
}

// LatestSnapshot returns nil, nil when nothing has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	snaps, err := s.ListSnapshots(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// ListSnapshots returns up to limit snapshots, newest first. Rows that no
// longer decode are skipped. A missing table reads as no snapshots.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectNewest, limit)
	if postgres.IsUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]analytics.AggregatedStats, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(raw, &stats); err != nil {
			s.log.Warn("skipping undecodable snapshot", "error", err)
			continue
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

// Restore loads the newest snapshot into agg. It is a no-op on an empty
// table.
func (s *Store) Restore(ctx context.Context, agg *analytics.Aggregator) error {
	prev, err := s.LatestSnapshot(ctx)
	if err != nil || prev == nil {
		return err
	}
	agg.Restore(*prev)
	s.log.Info("analytics restored", "searches", prev.TotalSearches, "indexes", prev.IndexesCreated)
	return nil
}

// StartPeriodicSave snapshots agg every interval in the background. When ctx
// ends one last snapshot is written with a fresh five second budget. The
// returned channel closes once that final write has finished, so callers
// must wait on it before closing the database.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) <-chan struct{} {
	save := func(ctx context.Context, when string) {
		if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
			s.log.Error("snapshot failed", "when", when, "error", err)
		}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				save(ctx, "periodic")
			case <-ctx.Done():
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				save(final, "shutdown")
				cancel()
				return
			}
		}
	}()
	s.log.Info("snapshotting analytics", "interval", interval)
	return done
}
