package retry

import (
	"time"

	"github.com/crucible-dev/crucible/pkg/models"
)

// Action is the next step the state machine selects after an attempt.
type Action string

const (
	// ActionRetry re-invokes the builder with validation feedback.
	ActionRetry Action = "retry"
	// ActionEscalate hands the task to a higher authority.
	ActionEscalate Action = "escalate"
	// ActionSuccess terminates the cycle successfully.
	ActionSuccess Action = "success"
	// ActionFail terminates the cycle as failed.
	ActionFail Action = "fail"
)

// Valid returns true if the action is a known value.
func (a Action) Valid() bool {
	switch a {
	case ActionRetry, ActionEscalate, ActionSuccess, ActionFail:
		return true
	default:
		return false
	}
}

// CycleStatus is the lifecycle state of one task's build/validate cycle.
type CycleStatus string

const (
	// StatusInProgress indicates more attempts may follow.
	StatusInProgress CycleStatus = "in_progress"
	// StatusSuccess indicates the cycle ended in an approved attempt.
	StatusSuccess CycleStatus = "success"
	// StatusFailed indicates the cycle ended without an approved attempt.
	StatusFailed CycleStatus = "failed"
	// StatusEscalated indicates the cycle was handed to a higher authority.
	StatusEscalated CycleStatus = "escalated"
)

// Valid returns true if the status is a known value.
func (s CycleStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusSuccess, StatusFailed, StatusEscalated:
		return true
	default:
		return false
	}
}

// Terminal returns true once the cycle may record no further attempts.
func (s CycleStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusEscalated
}

// RetryAttempt is one historical record in a cycle. Entries are appended
// when a decision is rendered and never mutated afterwards.
type RetryAttempt struct {
	// Number is the 0-indexed attempt number.
	Number int `json:"number"`
	// Timestamp is when the attempt was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Builder is the builder's output, absent if the builder produced none.
	Builder *models.BuilderOutput `json:"builder,omitempty"`
	// Verdict is the aggregated validator verdict, absent if validation
	// never ran for this attempt.
	Verdict *models.AggregatedVerdict `json:"verdict,omitempty"`
	// Issues is the snapshot of issue texts at decision time.
	Issues []string `json:"issues,omitempty"`
	// Action is the decision rendered for this attempt.
	Action Action `json:"action"`
}

// RetryState carries a cycle's attempt history. It is a value type: every
// update returns a new state and already-appended history entries are safe
// to read from reports generated mid-flight.
type RetryState struct {
	// TaskID is the task this cycle belongs to.
	TaskID string `json:"task_id"`
	// CurrentAttempt starts at 0 and increments by exactly 1 per recorded
	// attempt.
	CurrentAttempt int `json:"current_attempt"`
	// MaxAttempts is the hard retry ceiling, fixed at creation.
	MaxAttempts int `json:"max_attempts"`
	// History holds one entry per recorded attempt, oldest first.
	History []RetryAttempt `json:"history"`
	// Status is the cycle lifecycle state.
	Status CycleStatus `json:"status"`
}

// NewState creates the starting state for one task's cycle.
func NewState(taskID string, maxAttempts int) RetryState {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return RetryState{
		TaskID:      taskID,
		MaxAttempts: maxAttempts,
		Status:      StatusInProgress,
	}
}

// RecordAttempt returns a new state with the attempt appended, the attempt
// counter incremented by one, and the status advanced according to the
// action. Success, escalate, and fail are terminal; retry leaves the cycle
// in progress. The receiver is not modified.
func (s RetryState) RecordAttempt(builder *models.BuilderOutput, verdict *models.AggregatedVerdict, issues []string, action Action) RetryState {
	attempt := RetryAttempt{
		Number:    s.CurrentAttempt,
		Timestamp: time.Now(),
		Builder:   builder,
		Verdict:   verdict,
		Issues:    append([]string(nil), issues...),
		Action:    action,
	}

	history := make([]RetryAttempt, len(s.History), len(s.History)+1)
	copy(history, s.History)
	history = append(history, attempt)

	next := s
	next.History = history
	next.CurrentAttempt = s.CurrentAttempt + 1

	switch action {
	case ActionSuccess:
		next.Status = StatusSuccess
	case ActionEscalate:
		next.Status = StatusEscalated
	case ActionFail:
		next.Status = StatusFailed
	default:
		next.Status = StatusInProgress
	}

	return next
}

// AllIssues returns every issue text recorded across the cycle's history,
// oldest attempt first.
func (s RetryState) AllIssues() []string {
	var issues []string
	for _, a := range s.History {
		issues = append(issues, a.Issues...)
	}
	return issues
}
