// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ConnectionHealth aggregates failure and retry counters for the summary file.
type ConnectionHealth struct {
	// Failures counts fetch cycles that ended in a transport or parse error.
	Failures int `json:"failures" yaml:"failures"`

	// TotalRetries counts every backoff sleep taken, both source-side
	// (between failed fetch cycles) and sink-side (between failed writes).
	TotalRetries int `json:"total_retries" yaml:"total_retries"`

	// LastSuccessfulFetch is the RFC 3339 time of the most recent cycle
	// that completed without error, or empty if none has yet.
	LastSuccessfulFetch string `json:"last_successful_fetch" yaml:"last_successful_fetch"`

	// UptimeHours is the elapsed wall-clock time since engine start.
	UptimeHours float64 `json:"uptime_hours" yaml:"uptime_hours"`
}

// Summary is the overwrite-only status document written alongside the
// append-only record file on every flush. No history is retained.
type Summary struct {
	// LastUpdated is the RFC 3339 time of the flush that wrote this summary.
	LastUpdated string `json:"last_updated" yaml:"last_updated"`

	// TotalPapers is the number of records flushed since engine start.
	TotalPapers int `json:"total_papers" yaml:"total_papers"`

	// MonitoringStatus describes the engine state (e.g. "active", "stopped").
	MonitoringStatus string `json:"monitoring_status" yaml:"monitoring_status"`

	// PapersInBuffer is the buffer depth immediately after the flush.
	PapersInBuffer int `json:"papers_in_buffer" yaml:"papers_in_buffer"`

	// ConnectionHealth carries the aggregate failure counters.
	ConnectionHealth ConnectionHealth `json:"connection_health" yaml:"connection_health"`
}
