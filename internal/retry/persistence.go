package retry

import "strings"

// persistenceMinLength is the normalized length above which substring
// containment counts as a match. Below it only exact equality matches, so
// unrelated short issues are not collapsed together.
const persistenceMinLength = 20

// normalizeIssue reduces an issue to lowercase alphanumerics so that
// punctuation and casing drift between attempts does not defeat matching.
func normalizeIssue(issue string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(issue) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// issuesMatch reports whether two issue texts describe the same problem.
// Normalized texts match when they are exactly equal, or when both exceed
// persistenceMinLength and one contains the other. The containment rule
// tolerates minor wording drift in model-generated issue text.
func issuesMatch(a, b string) bool {
	na, nb := normalizeIssue(a), normalizeIssue(b)
	if na == nb {
		return na != ""
	}
	if len(na) > persistenceMinLength && len(nb) > persistenceMinLength {
		return strings.Contains(na, nb) || strings.Contains(nb, na)
	}
	return false
}

// DetectPersistentIssues returns the issues from the current round that
// already appeared in any prior attempt's issue snapshot. Repetition across
// attempts signals that plain retrying is not resolving the problem.
func DetectPersistentIssues(history []RetryAttempt, current []string) []string {
	if len(history) == 0 || len(current) == 0 {
		return nil
	}

	var persistent []string
	for _, issue := range current {
		if seenBefore(history, issue) && !containsMatch(persistent, issue) {
			persistent = append(persistent, issue)
		}
	}
	return persistent
}

func seenBefore(history []RetryAttempt, issue string) bool {
	for _, attempt := range history {
		for _, prior := range attempt.Issues {
			if issuesMatch(prior, issue) {
				return true
			}
		}
	}
	return false
}

func containsMatch(list []string, issue string) bool {
	for _, s := range list {
		if issuesMatch(s, issue) {
			return true
		}
	}
	return false
}
