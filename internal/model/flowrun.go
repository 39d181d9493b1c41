package model

import "time"

// FlowState is the lifecycle state of one flow invocation.
type FlowState string

const (
	FlowPending   FlowState = "pending"
	FlowCompleted FlowState = "completed"
	FlowFailed    FlowState = "failed"
)

// FlowRun is the audit record of one flow invocation.
type FlowRun struct {
	ID         string     `json:"id"`
	Flow       string     `json:"flow"`
	State      FlowState  `json:"state"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	Usage      TokenUsage `json:"token_usage"`
	CreatedAt  time.Time  `json:"created_at"`
}
