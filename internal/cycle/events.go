package cycle

import "time"

// EventType identifies a point in the cycle's progress.
type EventType string

const (
	EventBuilderStarted    EventType = "builder_started"
	EventBuilderFinished   EventType = "builder_finished"
	EventValidationStarted EventType = "validation_started"
	EventValidatorFinished EventType = "validator_finished"
	EventDecision          EventType = "decision"
	EventEscalated         EventType = "escalated"
	EventCycleFinished     EventType = "cycle_finished"
)

// Event is a progress notification emitted while a cycle runs.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id"`
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives cycle events. Sinks must not block; slow consumers
// should buffer on their side.
type EventSink func(Event)

func (o *Orchestrator) emit(eventType EventType, taskID string, attempt int, message string) {
	o.logger.Log("%s task=%s attempt=%d %s", eventType, taskID, attempt, message)
	if o.events == nil {
		return
	}
	o.events(Event{
		Type:      eventType,
		TaskID:    taskID,
		Attempt:   attempt,
		Message:   message,
		Timestamp: time.Now(),
	})
}
