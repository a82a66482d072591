package dto

import "time"

// AgentRun is the captured result of one CLI agent invocation.
type AgentRun struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}
