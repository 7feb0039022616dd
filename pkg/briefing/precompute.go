package briefing

import (
	"context"
	"time"
)

// RunPrecompute recomputes the briefing for every agent in cfg.PrecomputeAgents
// on cfg.PrecomputeInterval, skipping any agent whose cache entry is still
// fresh (spec.md §4.8 "Pre-computation").
func (e *Engine) RunPrecompute(ctx context.Context) {
	if len(e.cfg.PrecomputeAgents) == 0 {
		return
	}

	ticker := time.NewTicker(e.cfg.PrecomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.precomputeOnce(ctx)
		}
	}
}

func (e *Engine) precomputeOnce(ctx context.Context) {
	currentVersion := e.storage.GraphVersion()
	for _, agentID := range e.cfg.PrecomputeAgents {
		for _, compact := range []bool{false, true} {
			key := cacheKey{AgentID: agentID, Compact: compact}
			if cached, ok := e.cache.Get(key); ok && cached.graphVersion == currentVersion {
				continue
			}
			if _, err := e.Get(ctx, agentID, compact); err != nil {
				e.logger.Printf("briefing: precompute %s (compact=%v): %v", agentID, compact, err)
			}
		}
	}
}
