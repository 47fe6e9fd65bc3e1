package models

import "time"

// BuilderStatus represents the outcome a builder agent reports for a task.
type BuilderStatus string

const (
	// BuilderSuccess indicates the builder believes the task is complete.
	BuilderSuccess BuilderStatus = "success"
	// BuilderPartial indicates the builder made progress but did not finish.
	BuilderPartial BuilderStatus = "partial"
	// BuilderFailed indicates the builder could not complete the task.
	BuilderFailed BuilderStatus = "failed"
	// BuilderBlocked indicates the builder was blocked by an external condition.
	BuilderBlocked BuilderStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s BuilderStatus) Valid() bool {
	switch s {
	case BuilderSuccess, BuilderPartial, BuilderFailed, BuilderBlocked:
		return true
	default:
		return false
	}
}

// EvidenceKind classifies a piece of evidence a builder attaches to its output.
type EvidenceKind string

const (
	// EvidenceCommandOutput is captured output from a shell command.
	EvidenceCommandOutput EvidenceKind = "command_output"
	// EvidenceTestResult is output from running a test suite.
	EvidenceTestResult EvidenceKind = "test_result"
	// EvidenceDiagnostics is compiler or linter diagnostics.
	EvidenceDiagnostics EvidenceKind = "diagnostics"
	// EvidenceManualCheck is a claim the builder verified by inspection.
	EvidenceManualCheck EvidenceKind = "manual_check"
)

// Valid returns true if the kind is a known value.
func (k EvidenceKind) Valid() bool {
	switch k {
	case EvidenceCommandOutput, EvidenceTestResult, EvidenceDiagnostics, EvidenceManualCheck:
		return true
	default:
		return false
	}
}

// Evidence is one item of supporting evidence in a builder's output.
type Evidence struct {
	// Kind classifies the evidence.
	Kind EvidenceKind `json:"kind"`
	// Content is the evidence text.
	Content string `json:"content"`
	// Passed indicates whether the evidence supports success.
	Passed bool `json:"passed"`
}

// ChangeType describes what happened to a file.
type ChangeType string

const (
	// ChangeCreated indicates the file was created.
	ChangeCreated ChangeType = "created"
	// ChangeModified indicates the file was modified.
	ChangeModified ChangeType = "modified"
	// ChangeDeleted indicates the file was deleted.
	ChangeDeleted ChangeType = "deleted"
)

// Valid returns true if the change type is a known value.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeCreated, ChangeModified, ChangeDeleted:
		return true
	default:
		return false
	}
}

// FileChange records one file the builder touched.
type FileChange struct {
	// Path is the file path relative to the repository root.
	Path string `json:"path"`
	// ChangeType describes what happened to the file.
	ChangeType ChangeType `json:"change_type"`
	// DiagnosticsClean indicates the file has no outstanding diagnostics.
	DiagnosticsClean bool `json:"diagnostics_clean"`
}

// SelfValidation records the builder's own validation pass, if it ran one.
type SelfValidation struct {
	// Passed indicates whether the builder's self-checks succeeded.
	Passed bool `json:"passed"`
	// RetryCount is how many internal retries the builder needed.
	RetryCount int `json:"retry_count"`
	// LastError is the last self-check error, if any.
	LastError string `json:"last_error,omitempty"`
}

// BuilderOutput is the structured result a builder agent produces for one task.
// It is immutable after creation: the orchestrator consumes it and either
// archives it or discards it when the cycle ends.
type BuilderOutput struct {
	// AgentID identifies the builder agent that produced this output.
	AgentID string `json:"agent_id"`
	// TaskID is the task the output belongs to.
	TaskID string `json:"task_id"`
	// Status is the outcome the builder reports.
	Status BuilderStatus `json:"status"`
	// Summary is the builder's free-text description of what it did.
	Summary string `json:"summary,omitempty"`
	// Evidence lists supporting evidence. May be empty but is never nil
	// in outputs produced by this module.
	Evidence []Evidence `json:"evidence"`
	// FilesModified lists files the builder touched, if reported.
	FilesModified []FileChange `json:"files_modified,omitempty"`
	// SelfValidation is the builder's own validation pass, if it ran one.
	SelfValidation *SelfValidation `json:"self_validation,omitempty"`
	// Timestamp is when the output was produced.
	Timestamp time.Time `json:"timestamp"`
}

// ShortCircuits returns true if the builder status means validation should
// not run at all (the builder itself reported failure or a hard block).
func (o *BuilderOutput) ShortCircuits() bool {
	return o.Status == BuilderFailed || o.Status == BuilderBlocked
}
