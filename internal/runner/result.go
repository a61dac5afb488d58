package runner

import (
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a build or of a single step.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCanceled  Status = "canceled"
)

// NewBuildID returns a UUIDv7. Build IDs are time-ordered, so sorting them
// lexically sorts builds by creation.
func NewBuildID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// StepResult records one executed (or skipped) plan step.
type StepResult struct {
	Seq      int           `json:"seq"`
	Phase    string        `json:"phase"`
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Command  []string      `json:"command,omitempty"`
	Status   Status        `json:"status"`
	ExitCode int           `json:"exit_code"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	LogTail  string        `json:"log_tail,omitempty"`
}

// BuildResult is the outcome of running a plan. Steps always has one entry
// per plan step, in sequence order.
type BuildResult struct {
	ID         string        `json:"id"`
	Project    string        `json:"project"`
	Version    string        `json:"version"`
	PlanDigest string        `json:"plan_digest"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Steps      []StepResult  `json:"steps"`
}
