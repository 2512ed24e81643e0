package models

import "time"

// TargetState is a step of the per-target monitoring state machine.
type TargetState string

const (
	StateProbing         TargetState = "probing"
	StateAlive           TargetState = "alive"
	StateDown            TargetState = "down"
	StateRestarting      TargetState = "restarting"
	StateReVerifying     TargetState = "reverifying"
	StateRecovered       TargetState = "recovered"
	StateRestartFailed   TargetState = "restart_failed"
	StateRunningFallback TargetState = "running_fallback"
	StateNoAction        TargetState = "no_action"
	StateSkipped         TargetState = "skipped" // cycle cancelled before the target was probed
)

// ProbeResult holds the outcome of a liveness probe.
type ProbeResult struct {
	Alive    bool
	Attempts int
	Duration time.Duration
}

// RestartResult holds the result of a restart attempt.
type RestartResult struct {
	CommandsIssued bool
	Duration       time.Duration
	Error          error
}

// CycleResult holds the final state of one target after a monitoring cycle.
type CycleResult struct {
	Target Target
	State  TargetState
	Error  error
}
