// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-stream/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// PollConfig holds settings for the feed pollers.
type PollConfig struct {
	HTTPConfig `yaml:",inline"`

	// ArxivCategories lists the arXiv categories to poll (e.g. "cs.AI").
	ArxivCategories []string `json:"arxiv_categories" yaml:"arxiv_categories"`

	// ArxivInterval is the delay between arXiv poll cycles (default 30s).
	ArxivInterval time.Duration `json:"arxiv_interval" yaml:"arxiv_interval"`

	// EnableBiorxiv controls whether the bioRxiv RSS feed is polled.
	EnableBiorxiv bool `json:"enable_biorxiv" yaml:"enable_biorxiv"`

	// BiorxivInterval is the delay between bioRxiv poll cycles (default 120s).
	BiorxivInterval time.Duration `json:"biorxiv_interval" yaml:"biorxiv_interval"`

	// MaxResults is the number of entries requested per arXiv cycle (default 50).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// RequestsPerSecond paces outbound arXiv requests across all category
	// pollers (default 0.5, i.e. one request every two seconds).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// SinkConfig holds settings for the flush/persist step.
type SinkConfig struct {
	// OutputPath is the append-only JSONL record file.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// SummaryPath is the overwrite-only summary status file.
	SummaryPath string `json:"summary_path" yaml:"summary_path"`

	// FlushInterval is the cadence of buffer flushes (default 60s).
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`

	// MaxWriteAttempts bounds retries of a failing flush write (default 5).
	MaxWriteAttempts int `json:"max_write_attempts" yaml:"max_write_attempts"`
}

// SupervisorConfig holds settings for the retry/reconnect supervisor.
type SupervisorConfig struct {
	// BackoffBase is the first backoff delay after a failure (default 1s).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// BackoffMax caps the backoff delay (default 300s).
	BackoffMax time.Duration `json:"backoff_max" yaml:"backoff_max"`

	// MaxRetries is the consecutive-failure count after which the retry
	// counter resets. There is no terminal failure state: the supervisor
	// keeps polling indefinitely.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RestartDelay is the pause before the engine restarts after an
	// unexpected error escapes the source supervisors (default 30s).
	RestartDelay time.Duration `json:"restart_delay" yaml:"restart_delay"`
}

// MonitorConfig holds settings for the optional HTTP monitor endpoint.
type MonitorConfig struct {
	// Enabled controls whether the monitor HTTP server is started.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr is the listen address for /status and /metrics (default ":9105").
	Addr string `json:"addr" yaml:"addr"`
}

// ArchiveConfig holds settings for the SQLite archive.
type ArchiveConfig struct {
	// ArchiveDir is the directory holding the archive database and exports.
	ArchiveDir string `json:"archive_dir" yaml:"archive_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// EngineConfig groups all settings for the ingestion engine.
type EngineConfig struct {
	Poll       PollConfig       `json:"poll" yaml:"poll"`
	Sink       SinkConfig       `json:"sink" yaml:"sink"`
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor"`
	Monitor    MonitorConfig    `json:"monitor" yaml:"monitor"`
}
