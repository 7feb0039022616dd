// Command knowgraphctl is a smoke-test harness for an embedded knowgraph
// database: it opens a data directory, runs a handful of operations
// against it, and reports pass/fail so a deploy or CI step can verify the
// engine is wired correctly end to end.
//
// Usage:
//
//	go run ./cmd/knowgraphctl [flags]
//
// Flags:
//
//	-data     data directory (default: in-memory)
//	-agent    agent id to use for the smoke ingest/briefing/search cycle
//	-output   output format: summary, json (default: summary)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/orneryd/knowgraph/pkg/graph"
	"github.com/orneryd/knowgraph/pkg/ingest"
	"github.com/orneryd/knowgraph/pkg/knowgraph"
	"github.com/orneryd/knowgraph/pkg/types"
)

// result is one smoke-test step's outcome.
type result struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func main() {
	dataDir := flag.String("data", "", "data directory (empty = in-memory)")
	agent := flag.String("agent", "smoke-agent", "agent id for the ingest/briefing/search cycle")
	output := flag.String("output", "summary", "output format: summary, json")
	flag.Parse()

	opts := knowgraph.DefaultOptions(*dataDir)
	opts.InMemory = *dataDir == ""
	opts.RunBackgroundLoops = false

	db, err := knowgraph.Open(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	results := runSmokeSuite(ctx, db, *agent)

	switch *output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(results)
	default:
		printSummary(results)
	}

	for _, r := range results {
		if !r.Passed {
			os.Exit(1)
		}
	}
}

func runSmokeSuite(ctx context.Context, db *knowgraph.DB, agent string) []result {
	var results []result
	var a, b *types.Node

	results = append(results, step("ingest", func() error {
		var err error
		a, _, err = db.Ingest(ctx, ingest.Event{
			Kind: "fact", Title: "the build is green",
			Source: types.Source{Agent: agent, Session: "smoke"},
		})
		if err != nil {
			return err
		}
		b, _, err = db.Ingest(ctx, ingest.Event{
			Kind: "goal", Title: "ship the release",
			Source: types.Source{Agent: agent, Session: "smoke"},
		})
		return err
	}))

	results = append(results, step("link", func() error {
		if a == nil || b == nil {
			return fmt.Errorf("ingest step did not produce nodes")
		}
		_, err := db.Link(ctx, a.ID, b.ID, "supports", 0.8, "smoke")
		return err
	}))

	results = append(results, step("neighbors", func() error {
		neighbors, err := db.Neighbors(ctx, a.ID, graph.Outgoing, nil)
		if err != nil {
			return err
		}
		if len(neighbors) == 0 {
			return fmt.Errorf("expected at least one neighbor")
		}
		return nil
	}))

	results = append(results, step("search", func() error {
		hits, err := db.Search(ctx, "build status", 5, nil)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			return fmt.Errorf("expected at least one search hit")
		}
		return nil
	}))

	results = append(results, step("briefing", func() error {
		b, err := db.Briefing(ctx, agent, false)
		if err != nil {
			return err
		}
		if b.AgentID != agent {
			return fmt.Errorf("briefing agent mismatch: got %q", b.AgentID)
		}
		return nil
	}))

	results = append(results, step("tick", func() error {
		_, err := db.Tick(ctx)
		return err
	}))

	results = append(results, step("sweep", func() error {
		_, err := db.Sweep(ctx)
		return err
	}))

	results = append(results, step("stats", func() error {
		stats, err := db.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.TotalNodes == 0 {
			return fmt.Errorf("expected at least one node in stats")
		}
		return nil
	}))

	return results
}

func step(name string, fn func() error) result {
	start := time.Now()
	err := fn()
	r := result{Name: name, Passed: err == nil, Duration: time.Since(start)}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func printSummary(results []result) {
	passed := 0
	for _, r := range results {
		mark := "ok"
		if !r.Passed {
			mark = "FAIL"
		} else {
			passed++
		}
		fmt.Printf("%-4s %-12s %s\n", mark, r.Name, r.Duration)
		if r.Error != "" {
			fmt.Printf("     %s\n", r.Error)
		}
	}
	fmt.Printf("\n%d/%d steps passed\n", passed, len(results))
}
