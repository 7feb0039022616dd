// Package config handles knowgraph's configuration via environment
// variables.
//
// Configuration is loaded from environment variables using LoadFromEnv()
// and validated with Validate() before use. Every setting has a documented
// default, so LoadFromEnv() is safe to call with nothing set.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
//	opts := knowgraph.DefaultOptions(cfg.Storage.DataDir)
//	opts.Autolink.Interval = cfg.Autolinker.Interval
//
// Environment Variables:
//
//	Storage:
//	- KNOWGRAPH_DATA_DIR="./data"
//	- KNOWGRAPH_SYNC_WRITES=true
//	- KNOWGRAPH_LOW_MEMORY=false
//
//	Embedding:
//	- KNOWGRAPH_EMBEDDING_DIMENSIONS=384
//
//	Auto-linker (spec.md §4.7):
//	- KNOWGRAPH_AUTOLINK_INTERVAL=60s
//	- KNOWGRAPH_AUTOLINK_THRESHOLD=0.75
//	- KNOWGRAPH_AUTOLINK_RUN_ON_STARTUP=true
//
//	Decay (spec.md §4.7):
//	- KNOWGRAPH_DECAY_DAILY_RATE=0.01
//	- KNOWGRAPH_DECAY_EXEMPT_MANUAL=true
//
//	Briefing (spec.md §4.8):
//	- KNOWGRAPH_BRIEFING_CACHE_TTL=5m
//	- KNOWGRAPH_BRIEFING_MAX_TOTAL_ITEMS=50
//
//	Retention (spec.md §3 invariant 8):
//	- KNOWGRAPH_RETENTION_GRACE_PERIOD=720h
//
// For the complete list, see the Config struct field documentation.
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/knowgraph/pkg/autolinker"
	"github.com/orneryd/knowgraph/pkg/decay"
	"github.com/orneryd/knowgraph/pkg/retention"
)

// Config holds all knowgraph configuration loaded from environment
// variables, organized into the same sections as the collaborators they
// configure.
type Config struct {
	Storage    StorageConfig
	Embedding  EmbeddingConfig
	Autolinker autolinker.Config
	Decay      decay.Config
	Briefing   BriefingConfig
	Retention  retention.Config
	Logging    LoggingConfig
	Runtime    RuntimeConfig
}

// StorageConfig holds BadgerDB engine settings.
type StorageConfig struct {
	DataDir    string
	InMemory   bool
	SyncWrites bool
	LowMemory  bool
}

// EmbeddingConfig holds the local embedding service's settings.
type EmbeddingConfig struct {
	Dimensions int
}

// BriefingConfig mirrors pkg/briefing.Config's knobs so they can be tuned
// from the environment without importing pkg/briefing here.
type BriefingConfig struct {
	CacheTTL               time.Duration
	MaxItemsPerSection     int
	MaxTotalItems          int
	MaxChars               int
	RecentWindow           time.Duration
	LowConfidenceThreshold float64
	PrecomputeInterval     time.Duration
	PrecomputeAgents       []string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// RuntimeConfig holds Go runtime tuning settings, applied once at startup.
type RuntimeConfig struct {
	MemoryLimitStr string
	MemoryLimit    int64
	GCPercent      int
}

// LoadFromEnv loads configuration from environment variables, applying
// documented defaults for anything unset.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Storage.DataDir = getEnv("KNOWGRAPH_DATA_DIR", "./data")
	cfg.Storage.InMemory = getEnvBool("KNOWGRAPH_IN_MEMORY", false)
	cfg.Storage.SyncWrites = getEnvBool("KNOWGRAPH_SYNC_WRITES", true)
	cfg.Storage.LowMemory = getEnvBool("KNOWGRAPH_LOW_MEMORY", false)

	cfg.Embedding.Dimensions = getEnvInt("KNOWGRAPH_EMBEDDING_DIMENSIONS", 384)

	autolinkDefaults := autolinker.DefaultConfig()
	cfg.Autolinker = autolinker.Config{
		Interval:                 getEnvDuration("KNOWGRAPH_AUTOLINK_INTERVAL", autolinkDefaults.Interval),
		AutoLinkThreshold:        float32(getEnvFloat("KNOWGRAPH_AUTOLINK_THRESHOLD", float64(autolinkDefaults.AutoLinkThreshold))),
		AutoLinkK:                getEnvInt("KNOWGRAPH_AUTOLINK_K", autolinkDefaults.AutoLinkK),
		ContradictionThreshold:   float32(getEnvFloat("KNOWGRAPH_CONTRADICTION_THRESHOLD", float64(autolinkDefaults.ContradictionThreshold))),
		TemporalWindow:           getEnvDuration("KNOWGRAPH_TEMPORAL_WINDOW", autolinkDefaults.TemporalWindow),
		MaxNodesPerCycle:         getEnvInt("KNOWGRAPH_AUTOLINK_MAX_NODES_PER_CYCLE", autolinkDefaults.MaxNodesPerCycle),
		MaxEdgesPerCycle:         getEnvInt("KNOWGRAPH_AUTOLINK_MAX_EDGES_PER_CYCLE", autolinkDefaults.MaxEdgesPerCycle),
		MaxEdgesPerNode:          getEnvInt("KNOWGRAPH_AUTOLINK_MAX_EDGES_PER_NODE", autolinkDefaults.MaxEdgesPerNode),
		GenericContentCandidates: getEnvInt("KNOWGRAPH_AUTOLINK_GENERIC_CANDIDATES", autolinkDefaults.GenericContentCandidates),
		DecayEveryN:              getEnvInt("KNOWGRAPH_DECAY_EVERY_N", autolinkDefaults.DecayEveryN),
		DedupEveryN:              getEnvInt("KNOWGRAPH_DEDUP_EVERY_N", autolinkDefaults.DedupEveryN),
		DedupThreshold:           float32(getEnvFloat("KNOWGRAPH_DEDUP_THRESHOLD", float64(autolinkDefaults.DedupThreshold))),
		RunOnStartup:             getEnvBool("KNOWGRAPH_AUTOLINK_RUN_ON_STARTUP", autolinkDefaults.RunOnStartup),
	}

	decayDefaults := decay.DefaultConfig()
	cfg.Decay = decay.Config{
		DailyRate:        getEnvFloat("KNOWGRAPH_DECAY_DAILY_RATE", decayDefaults.DailyRate),
		ImportanceShield: getEnvFloat("KNOWGRAPH_DECAY_IMPORTANCE_SHIELD", decayDefaults.ImportanceShield),
		PruneThreshold:   getEnvFloat("KNOWGRAPH_DECAY_PRUNE_THRESHOLD", decayDefaults.PruneThreshold),
		DeleteThreshold:  getEnvFloat("KNOWGRAPH_DECAY_DELETE_THRESHOLD", decayDefaults.DeleteThreshold),
		ExemptManual:     getEnvBool("KNOWGRAPH_DECAY_EXEMPT_MANUAL", decayDefaults.ExemptManual),
	}

	cfg.Briefing = BriefingConfig{
		CacheTTL:               getEnvDuration("KNOWGRAPH_BRIEFING_CACHE_TTL", 5*time.Minute),
		MaxItemsPerSection:     getEnvInt("KNOWGRAPH_BRIEFING_MAX_ITEMS_PER_SECTION", 10),
		MaxTotalItems:          getEnvInt("KNOWGRAPH_BRIEFING_MAX_TOTAL_ITEMS", 50),
		MaxChars:               getEnvInt("KNOWGRAPH_BRIEFING_MAX_CHARS", 8000),
		RecentWindow:           getEnvDuration("KNOWGRAPH_BRIEFING_RECENT_WINDOW", 48*time.Hour),
		LowConfidenceThreshold: getEnvFloat("KNOWGRAPH_BRIEFING_LOW_CONFIDENCE_THRESHOLD", 0.4),
		PrecomputeInterval:     getEnvDuration("KNOWGRAPH_BRIEFING_PRECOMPUTE_INTERVAL", 5*time.Minute),
		PrecomputeAgents:       getEnvStringSlice("KNOWGRAPH_BRIEFING_PRECOMPUTE_AGENTS", nil),
	}

	retentionDefaults := retention.DefaultConfig()
	cfg.Retention = retention.Config{
		GracePeriod: getEnvDuration("KNOWGRAPH_RETENTION_GRACE_PERIOD", retentionDefaults.GracePeriod),
		BatchSize:   getEnvInt("KNOWGRAPH_RETENTION_BATCH_SIZE", retentionDefaults.BatchSize),
	}

	cfg.Logging.Level = getEnv("KNOWGRAPH_LOG_LEVEL", "INFO")
	cfg.Logging.Format = getEnv("KNOWGRAPH_LOG_FORMAT", "text")
	cfg.Logging.Output = getEnv("KNOWGRAPH_LOG_OUTPUT", "stderr")

	cfg.Runtime.MemoryLimitStr = getEnv("KNOWGRAPH_MEMORY_LIMIT", "0")
	cfg.Runtime.MemoryLimit = parseMemorySize(cfg.Runtime.MemoryLimitStr)
	cfg.Runtime.GCPercent = getEnvInt("KNOWGRAPH_GC_PERCENT", 100)

	return cfg
}

// Validate checks the configuration for logical errors.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", c.Embedding.Dimensions)
	}
	if c.Autolinker.Interval <= 0 {
		return fmt.Errorf("invalid autolinker interval: %s", c.Autolinker.Interval)
	}
	if c.Retention.GracePeriod < 0 {
		return fmt.Errorf("invalid retention grace period: %s", c.Retention.GracePeriod)
	}
	return nil
}

// String returns a safe string representation of the Config, suitable for
// logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, InMemory: %v, AutolinkInterval: %s, RetentionGracePeriod: %s}",
		c.Storage.DataDir, c.Storage.InMemory, c.Autolinker.Interval, c.Retention.GracePeriod,
	)
}

// DumpYAML renders the full Config as YAML, for operators inspecting the
// resolved settings at startup (e.g. logged once behind a debug flag).
func (c *Config) DumpYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config: marshal yaml: %w", err)
	}
	return string(data), nil
}

// --- env var parsing helpers ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// ApplyRuntimeMemory applies the runtime memory settings to the Go
// runtime. Call early in main(), before heavy allocations.
func (c *RuntimeConfig) ApplyRuntimeMemory() {
	if c.MemoryLimit > 0 {
		debug.SetMemoryLimit(c.MemoryLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}
