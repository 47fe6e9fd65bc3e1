// Package retry decides what happens after a builder attempt is validated:
// retry with feedback, escalate to a higher tier, succeed, or fail. State is
// carried as immutable values and updated by pure transforms so historical
// attempts can never be rewritten.
package retry

import "strings"

// IssueKeywords is the single source of truth for issue classification
// keywords. Both the decision function and the escalation selector match
// against these tables so retryability stays consistent everywhere.
type IssueKeywords struct {
	// NonRetryable keywords mark issues another builder attempt cannot
	// fix: security findings, missing environment pieces, architectural
	// problems, and anything flagged for a human.
	NonRetryable []string

	// Retryable keywords mark issues a fresh attempt with feedback has a
	// realistic chance of fixing: syntax, types, logic, edge cases.
	Retryable []string
}

// DefaultIssueKeywords returns the authoritative keyword tables.
var DefaultIssueKeywords = IssueKeywords{
	NonRetryable: []string{
		"security",
		"vulnerability",
		"vulnerable",
		"sensitive data",
		"sql injection",
		"xss",
		"auth",
		"credential",
		"missing dependency",
		"module not found",
		"package not installed",
		"config file not found",
		"configuration not found",
		"architectural",
		"architecture issue",
		"design flaw",
		"requires manual",
		"human review",
		"manual intervention",
	},

	Retryable: []string{
		"syntax error",
		"parse error",
		"parsing error",
		"missing semicolon",
		"type error",
		"type mismatch",
		"undefined variable",
		"logic error",
		"incorrect logic",
		"wrong output",
		"off-by-one",
		"edge case",
		"boundary",
		"null check",
		"nil check",
		"error handling",
		"unhandled error",
		"test failure",
		"failing test",
	},
}

// IsRetryable reports whether an issue can plausibly be fixed by another
// builder attempt. Non-retryable keywords win over retryable ones, and
// issues matching neither table default to non-retryable: retrying an
// unknown failure class risks looping forever, escalating it does not.
func IsRetryable(issue string) bool {
	lower := strings.ToLower(issue)

	for _, kw := range DefaultIssueKeywords.NonRetryable {
		if strings.Contains(lower, kw) {
			return false
		}
	}

	for _, kw := range DefaultIssueKeywords.Retryable {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	// Unknown failure class: be conservative and escalate.
	return false
}

// AllRetryable reports whether every issue in the list is retryable.
// An empty list is vacuously retryable.
func AllRetryable(issues []string) bool {
	for _, issue := range issues {
		if !IsRetryable(issue) {
			return false
		}
	}
	return true
}
