package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the tunable parameters of the ingestion pipeline.
// Every duration-valued knob defaults to the value documented next to it;
// a TOML config file overrides individual fields.
type Config struct {
	// BigQuery project and dataset backing the persistence gateway.
	ProjectID string `toml:"project_id"`
	DatasetID string `toml:"dataset_id"`

	// ArchiveBucket enables raw-capture archival to GCS when set.
	ArchiveBucket string `toml:"archive_bucket"`

	// WatermarkPath is the local file holding per-user watermarks.
	WatermarkPath string `toml:"watermark_path"`

	// CurrencyTokens are the currency spellings the parser recognizes in
	// message bodies (amounts are written like "KES 1,250.00" or
	// "Ksh15"). Empty means the parser's built-in defaults.
	CurrencyTokens []string `toml:"currency_tokens"`

	// PollInterval is how often the poller adapter rescans the inbox.
	PollInterval duration `toml:"poll_interval"`

	// CatchupBatchSize bounds how many recent messages one scan reads.
	CatchupBatchSize int `toml:"catchup_batch_size"`

	// DedupTTL is how long a completed identity is remembered by the
	// in-process guard.
	DedupTTL duration `toml:"dedup_ttl"`

	// BackgroundMinInterval is the shortest gap between two background
	// catch-up scans.
	BackgroundMinInterval duration `toml:"background_min_interval"`

	// DuplicateWindow is the half-width of the amount/time duplicate
	// lookup window around a transaction's occurrence time.
	DuplicateWindow duration `toml:"duplicate_window"`

	// CategoryCacheTTL bounds how stale the per-user category cache may be.
	CategoryCacheTTL duration `toml:"category_cache_ttl"`

	// WorkerCount is how many pipeline workers drain the ingest queue.
	WorkerCount int `toml:"worker_count"`
}

// duration lets TOML files write durations as "20s" / "5m".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ProjectID:             os.Getenv("BQ_PROJECT"),
		DatasetID:             "flow",
		WatermarkPath:         "watermarks.json",
		PollInterval:          duration(20 * time.Second),
		CatchupBatchSize:      50,
		DedupTTL:              duration(5 * time.Minute),
		BackgroundMinInterval: duration(15 * time.Minute),
		DuplicateWindow:       duration(5 * time.Minute),
		CategoryCacheTTL:      duration(5 * time.Minute),
		WorkerCount:           4,
	}
}

// Load reads a TOML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CatchupBatchSize <= 0 {
		return fmt.Errorf("catchup_batch_size must be positive, got %d", c.CatchupBatchSize)
	}
	if c.PollInterval.Duration() <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be positive, got %d", c.WorkerCount)
	}
	return nil
}
