// Package retention implements the hard-delete grace period policy
// (spec.md §3 invariant 8): a node soft-deleted via DeleteNode is excluded
// from default queries and traversals immediately, but its row and
// incident edges are not physically removed until GracePeriod has elapsed
// since deletion. (The façade's Forget removes the vector-index entry at
// soft-delete time.) The Sweeper walks tombstoned nodes past that deadline
// and hard-deletes them.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
)

// Config holds the grace-period policy.
type Config struct {
	// GracePeriod is how long a soft-deleted node is kept before it
	// becomes eligible for hard deletion.
	GracePeriod time.Duration

	// BatchSize bounds how many tombstoned nodes a single Sweep call
	// examines, to keep a sweep cycle's wall-clock bounded.
	BatchSize int
}

// DefaultConfig returns the default grace-period policy: 30 days, 500
// nodes per sweep.
func DefaultConfig() Config {
	return Config{GracePeriod: 30 * 24 * time.Hour, BatchSize: 500}
}

// Sweeper periodically hard-deletes nodes that have been soft-deleted for
// longer than cfg.GracePeriod.
type Sweeper struct {
	storage storage.Engine
	cfg     Config
	logger  *log.Logger
}

// New builds a Sweeper. cfg may be the zero value, in which case
// DefaultConfig applies.
func New(store storage.Engine, cfg Config, logger *log.Logger) *Sweeper {
	if cfg.GracePeriod == 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{storage: store, cfg: cfg, logger: logger}
}

// Metrics reports the outcome of one Sweep call.
type Metrics struct {
	Examined     int
	HardDeleted  int
}

// Sweep lists soft-deleted nodes and hard-deletes every one whose
// updated_at (the soft-delete timestamp, since DeleteNode touches it) is
// older than cfg.GracePeriod. HardDeleteNode cascades to incident edges;
// it does not touch the vector index.
func (s *Sweeper) Sweep(ctx context.Context) (Metrics, error) {
	var m Metrics

	deadline := time.Now().UTC().Add(-s.cfg.GracePeriod)

	nodes, err := s.storage.ListNodes(ctx, storage.NodeFilter{
		IncludeDeleted: true,
		Limit:          s.cfg.BatchSize,
	})
	if err != nil {
		return m, fmt.Errorf("retention: list nodes: %w", err)
	}

	for _, n := range nodes {
		if !n.Deleted {
			continue
		}
		m.Examined++
		if n.UpdatedAt.After(deadline) {
			continue
		}
		if err := s.storage.HardDeleteNode(ctx, n.ID); err != nil {
			s.logger.Printf("retention: hard-delete %s: %v", n.ID, err)
			continue
		}
		m.HardDeleted++
	}

	return m, nil
}

// Run executes Sweep on cfg.GracePeriod/10 tick (bounded to at least one
// minute), until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.cfg.GracePeriod / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Printf("retention: sweep: %v", err)
			}
		}
	}
}

// eligibleForHardDelete reports whether node n, soft-deleted, has aged
// past cfg's grace period as of now. Exposed for tests.
func eligibleForHardDelete(cfg Config, n *types.Node, now time.Time) bool {
	if !n.Deleted {
		return false
	}
	return now.Sub(n.UpdatedAt) >= cfg.GracePeriod
}
