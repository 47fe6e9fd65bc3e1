package models

// ModelClass is the capability level requested for an agent invocation.
// It is an uninterpreted label; configuration maps each class onto a
// concrete model name.
type ModelClass string

const (
	// ModelClassLow is the cheap, fast class for simple work.
	ModelClassLow ModelClass = "low"
	// ModelClassMedium is the balanced class for standard work.
	ModelClassMedium ModelClass = "medium"
	// ModelClassHigh is the most capable class for complex work.
	ModelClassHigh ModelClass = "high"
)

// Valid returns true if the model class is a known value.
func (m ModelClass) Valid() bool {
	switch m {
	case ModelClassLow, ModelClassMedium, ModelClassHigh:
		return true
	default:
		return false
	}
}

// EscalationLevel identifies who receives an escalated task.
type EscalationLevel string

const (
	// EscalateCoordinator hands the task to the coordinating agent tier.
	EscalateCoordinator EscalationLevel = "coordinator"
	// EscalateArchitect hands the task to the architect agent tier.
	EscalateArchitect EscalationLevel = "architect"
	// EscalateHuman surfaces the task to a human and halts automation.
	EscalateHuman EscalationLevel = "human"
)

// Valid returns true if the level is a known value.
func (l EscalationLevel) Valid() bool {
	switch l {
	case EscalateCoordinator, EscalateArchitect, EscalateHuman:
		return true
	default:
		return false
	}
}
