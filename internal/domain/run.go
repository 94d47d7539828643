package domain

import "time"

// StepResult records one orchestrated step.
type StepResult struct {
	Command    string            `json:"command"`
	Options    map[string]string `json:"options"`
	DurationMS int64             `json:"duration_ms"`
	ExitCode   int               `json:"exit_code"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
}

// PipelineRun summarizes one orchestrator execution. It is logged and optionally
// published, never persisted.
type PipelineRun struct {
	ID         string       `json:"id"`
	Mode       Mode         `json:"mode"`
	StartedAt  time.Time    `json:"started_at"`
	Steps      []StepResult `json:"steps"`
	DurationMS int64        `json:"duration_ms"`
	Success    bool         `json:"success"`
}
