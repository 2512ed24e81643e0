// Package models contains the data structures used throughout hldswatch.
package models

import "time"

// WatchConfig holds the complete, validated configuration for a monitoring run.
type WatchConfig struct {
	Settings Settings
	Targets  []Target // in configuration file order
}

// Settings holds the monitor-wide tunables.
type Settings struct {
	CheckInterval time.Duration // idle time between cycles
	QueryTimeout  time.Duration // per probe attempt
	QueryRetries  int           // probe attempts before a target is considered down
	RetryWait     time.Duration // wait after a failed probe attempt
	RestartGrace  time.Duration // wait between restart and re-verification
	LogFile       string        // empty disables file logging
	Workers       int           // concurrent target evaluations per cycle, 1 is sequential
	Verbose       bool
	MetricsAddr   string          // empty disables the metrics listener
	Telegram      *TelegramConfig // nil if not configured
}

// DefaultSettings returns the settings used when nothing is overridden.
func DefaultSettings() Settings {
	return Settings{
		CheckInterval: 300 * time.Second,
		QueryTimeout:  3 * time.Second,
		QueryRetries:  3,
		RetryWait:     5 * time.Second,
		RestartGrace:  5 * time.Second,
		LogFile:       "hldswatch.log",
		Workers:       1,
	}
}
