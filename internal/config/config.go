// Package config defines the relay configuration and how it is loaded.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address of the read API, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WSURI is the origin server's websocket endpoint.
	WSURI string `koanf:"ws_uri"`

	// RxName and TxName are the display names of the inbound connection and of
	// the short-lived re-announce connections.
	RxName string `koanf:"rx_name"`
	TxName string `koanf:"tx_name"`

	// TransmitMarker identifies this relay's own outbound connections by name.
	TransmitMarker string `koanf:"transmit_marker"`

	// ClientVersion is sent in the connect handshake.
	ClientVersion int32 `koanf:"client_version"`

	// WorkerCount sets the number of reconciliation workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds each worker's queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets how many recent packet ids are remembered. Must be
	// positive.
	DedupeSize int `koanf:"dedupe_size"`

	// Announce retry policy for re-announced matches.
	AnnounceMaxRetries       uint64 `koanf:"announce_max_retries"`
	AnnounceInitialBackoffMS int    `koanf:"announce_initial_backoff_ms"`
	AnnounceMaxBackoffMS     int    `koanf:"announce_max_backoff_ms"`

	// ReconnectMaxBackoffMS caps the delay between inbound reconnect attempts.
	ReconnectMaxBackoffMS int `koanf:"reconnect_max_backoff_ms"`

	// TelemetryDir, when set, archives every realtime score below it.
	TelemetryDir string `koanf:"telemetry_dir"`

	// FailOnUnimplemented stops the relay on packet kinds it cannot reconcile.
	FailOnUnimplemented bool `koanf:"fail_on_unimplemented"`
}

// New creates a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":8080",
		RxName:                   "TA-Relay-RX",
		TxName:                   "TA-Relay-TX",
		TransmitMarker:           "TX",
		ClientVersion:            74,
		WorkerCount:              runtime.NumCPU(),
		QueueSize:                1024,
		DedupeSize:               4096,
		AnnounceMaxRetries:       3,
		AnnounceInitialBackoffMS: 200,
		AnnounceMaxBackoffMS:     2000,
		ReconnectMaxBackoffMS:    30_000,
	}
}

// AnnounceInitialBackoff returns the first announce retry delay.
func (c *Config) AnnounceInitialBackoff() time.Duration {
	return time.Duration(c.AnnounceInitialBackoffMS) * time.Millisecond
}

// AnnounceMaxBackoff returns the largest announce retry delay.
func (c *Config) AnnounceMaxBackoff() time.Duration {
	return time.Duration(c.AnnounceMaxBackoffMS) * time.Millisecond
}

// ReconnectMaxBackoff returns the largest delay between reconnect attempts.
func (c *Config) ReconnectMaxBackoff() time.Duration {
	return time.Duration(c.ReconnectMaxBackoffMS) * time.Millisecond
}
