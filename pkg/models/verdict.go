package models

// VerdictStatus represents a validator's overall judgment of a builder's output.
type VerdictStatus string

const (
	// VerdictApproved indicates the validator found no blocking problems.
	VerdictApproved VerdictStatus = "APPROVED"
	// VerdictRejected indicates the validator found problems that must be fixed.
	VerdictRejected VerdictStatus = "REJECTED"
	// VerdictNeedsReview indicates the validator could not reach a clear verdict.
	VerdictNeedsReview VerdictStatus = "NEEDS_REVIEW"
)

// Valid returns true if the status is a known value.
func (s VerdictStatus) Valid() bool {
	switch s {
	case VerdictApproved, VerdictRejected, VerdictNeedsReview:
		return true
	default:
		return false
	}
}

// Severity classifies how serious a failed validation check is.
type Severity string

const (
	// SeverityCritical marks failures that must block acceptance.
	SeverityCritical Severity = "critical"
	// SeverityMajor marks significant but fixable failures.
	SeverityMajor Severity = "major"
	// SeverityMinor marks cosmetic or low-impact failures.
	SeverityMinor Severity = "minor"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor:
		return true
	default:
		return false
	}
}

// ValidationCheck is a single named check performed by a validator.
type ValidationCheck struct {
	// Name identifies the check (e.g., "no_sql_injection").
	Name string `json:"name"`
	// Passed indicates whether the check succeeded.
	Passed bool `json:"passed"`
	// Evidence is the validator's supporting text for the result.
	Evidence string `json:"evidence,omitempty"`
	// Severity is how serious a failure of this check is.
	Severity Severity `json:"severity"`
}

// ValidatorVerdict is one validator's structured opinion of a builder's output.
type ValidatorVerdict struct {
	// ValidatorKind identifies the validation axis (syntax, logic,
	// security, integration, ...). This is an open set; callers may
	// register additional kinds.
	ValidatorKind string `json:"validator_kind"`
	// TaskID is the task the validated output belongs to.
	TaskID string `json:"task_id"`
	// Status is the validator's overall judgment.
	Status VerdictStatus `json:"status"`
	// Checks lists the individual checks performed.
	Checks []ValidationCheck `json:"checks,omitempty"`
	// Issues lists problems found, as free text.
	Issues []string `json:"issues,omitempty"`
	// Recommendations lists suggested fixes, as free text.
	Recommendations []string `json:"recommendations,omitempty"`
}

// AggregatedVerdict combines all validator verdicts for one attempt.
type AggregatedVerdict struct {
	// OverallStatus is the worst-case status across all input verdicts.
	OverallStatus VerdictStatus `json:"overall_status"`
	// CriticalIssues collects issues from rejected validators plus any
	// failed critical-severity check, formatted for human reading.
	CriticalIssues []string `json:"critical_issues,omitempty"`
	// AllEvidence is the flattened evidence from every validator.
	AllEvidence []string `json:"all_evidence,omitempty"`
}
