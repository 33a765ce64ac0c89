// Package run holds the pipeline's bookkeeping types: what the user asked
// for, how each stage went, and where a run sits in its lifecycle. The Store
// keeps every run keyed by id so concurrent runs stay isolated.
package run

import (
	"time"

	"github.com/khushiGit123/jira-gen/internal/artifact"
)

// UserInput is the immutable submission that starts a run.
type UserInput struct {
	// Requirements is the free-text business requirement description.
	Requirements string `json:"requirements"`
	// TargetUsers optionally narrows who the product serves.
	TargetUsers string `json:"target_users,omitempty"`
	// Timeline optionally states delivery expectations.
	Timeline string `json:"timeline,omitempty"`
	// Budget optionally states budget constraints.
	Budget string `json:"budget,omitempty"`
	// JiraProjectKey overrides the configured Jira project for this run.
	JiraProjectKey string `json:"jira_project_key,omitempty"`
}

// StageStatus tracks one stage's progress inside a run.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageResult records one stage execution. The pipeline keeps mutating
// Document after it is stored (diagram rendering, sync state), so snapshots
// carry their own deep copy.
type StageResult struct {
	Stage       string              `json:"stage"`
	Status      StageStatus         `json:"status"`
	Attempts    int                 `json:"attempts"`
	Confidence  artifact.Confidence `json:"confidence,omitempty"`
	RawOutput   string              `json:"-"`
	Document    *artifact.Document  `json:"-"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at,omitempty"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
}

// Duration returns how long the stage ran, zero if it never completed.
func (r StageResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Status is the overall lifecycle position of a run.
type Status string

const (
	StatusCreated               Status = "created"
	StatusAnalyzingRequirements Status = "analyzing_requirements"
	StatusDesigningArchitecture Status = "designing_architecture"
	StatusGeneratingBacklog     Status = "generating_backlog"
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
	StatusCancelled             Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithWarnings, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RunState is the full record of one run.
type RunState struct {
	ID        string        `json:"id"`
	Input     UserInput     `json:"input"`
	Status    Status        `json:"status"`
	Stages    []StageResult `json:"stages"`
	Warnings  []string      `json:"warnings,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// clone returns a snapshot sharing no mutable memory with the stored run,
// so callers never observe later pipeline writes.
func (r *RunState) clone() RunState {
	out := *r
	out.Stages = make([]StageResult, len(r.Stages))
	copy(out.Stages, r.Stages)
	for i := range out.Stages {
		out.Stages[i].Document = out.Stages[i].Document.Clone()
	}
	if len(r.Warnings) > 0 {
		out.Warnings = make([]string, len(r.Warnings))
		copy(out.Warnings, r.Warnings)
	}
	return out
}

// StageNamed returns the result for the named stage, if recorded.
func (r *RunState) StageNamed(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Documents collects the structured outputs of succeeded stages keyed by
// artifact kind.
func (r *RunState) Documents() map[artifact.Kind]*artifact.Document {
	out := make(map[artifact.Kind]*artifact.Document)
	for _, s := range r.Stages {
		if s.Status == StageSucceeded && s.Document != nil {
			out[s.Document.Kind] = s.Document
		}
	}
	return out
}
