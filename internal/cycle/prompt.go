package cycle

import (
	"fmt"
	"strings"

	"github.com/crucible-dev/crucible/pkg/models"
)

// Task is the unit of work a cycle runs for.
type Task struct {
	// ID uniquely identifies the task.
	ID string
	// Title is a short task name.
	Title string
	// Description is the full task statement given to the builder.
	Description string
	// AcceptanceCriteria lists what the validators hold the work to.
	AcceptanceCriteria []string
}

// buildBuilderPrompt constructs the builder's prompt. On retries the
// previous round's feedback is appended so the builder can address it.
func buildBuilderPrompt(task Task, attempt int, feedback string) string {
	var sb strings.Builder

	sb.WriteString("# Build Task\n\n")
	sb.WriteString(fmt.Sprintf("**Task**: %s\n\n", task.Title))
	sb.WriteString(fmt.Sprintf("**Description**:\n%s\n\n", task.Description))

	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("**Acceptance Criteria**:\n")
		for i, criteria := range task.AcceptanceCriteria {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, criteria))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("When finished, report your result as JSON with fields: ")
	sb.WriteString("`status` (success|partial|failed|blocked), `summary`, `evidence`, ")
	sb.WriteString("`files_modified`, and `self_validation`.\n")

	if attempt > 0 && feedback != "" {
		sb.WriteString(fmt.Sprintf("\n# Previous Attempt Feedback (attempt %d)\n\n", attempt))
		sb.WriteString("Your previous submission was not approved. Address every item below.\n\n")
		sb.WriteString(feedback)
	}

	return sb.String()
}

// buildValidatorPrompt constructs a validator's prompt from the builder's
// submission.
func buildValidatorPrompt(task Task, builder *models.BuilderOutput) string {
	var sb strings.Builder

	sb.WriteString("# Validation Request\n\n")
	sb.WriteString(fmt.Sprintf("**Task**: %s\n\n", task.Title))
	sb.WriteString(fmt.Sprintf("**Description**:\n%s\n\n", task.Description))

	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("**Acceptance Criteria**:\n")
		for i, criteria := range task.AcceptanceCriteria {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, criteria))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Builder Submission\n\n")
	if builder.Summary != "" {
		sb.WriteString(fmt.Sprintf("**Summary**: %s\n\n", builder.Summary))
	}
	if len(builder.FilesModified) > 0 {
		sb.WriteString("**Files Modified**:\n")
		for _, change := range builder.FilesModified {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", change.Path, change.ChangeType))
		}
		sb.WriteString("\n")
	}
	if len(builder.Evidence) > 0 {
		sb.WriteString("**Evidence**:\n")
		for _, e := range builder.Evidence {
			status := "failed"
			if e.Passed {
				status = "passed"
			}
			sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", status, e.Kind, e.Content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Respond with a JSON verdict: `status` (APPROVED|REJECTED|NEEDS_REVIEW), ")
	sb.WriteString("`checks`, `issues`, and `recommendations`.\n")

	return sb.String()
}

// buildRetryFeedback renders the validators' findings as the feedback
// section of the next builder prompt.
func buildRetryFeedback(verdicts []models.ValidatorVerdict) string {
	var sb strings.Builder

	for _, v := range verdicts {
		if v.Status == models.VerdictApproved {
			continue
		}

		sb.WriteString(fmt.Sprintf("## %s validator (%s)\n\n", v.ValidatorKind, v.Status))

		var failed []models.ValidationCheck
		for _, c := range v.Checks {
			if !c.Passed {
				failed = append(failed, c)
			}
		}
		if len(failed) > 0 {
			sb.WriteString("**Failed checks**:\n")
			for _, c := range failed {
				sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", c.Name, c.Severity, c.Evidence))
			}
			sb.WriteString("\n")
		}

		if len(v.Issues) > 0 {
			sb.WriteString("**Issues**:\n")
			for _, issue := range v.Issues {
				sb.WriteString(fmt.Sprintf("- %s\n", issue))
			}
			sb.WriteString("\n")
		}

		if len(v.Recommendations) > 0 {
			sb.WriteString("**Recommendations**:\n")
			for _, rec := range v.Recommendations {
				sb.WriteString(fmt.Sprintf("- %s\n", rec))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
