package cycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/crucible-dev/crucible/internal/retry"
	"github.com/crucible-dev/crucible/internal/runner"
	"github.com/crucible-dev/crucible/internal/verdict"
	"github.com/crucible-dev/crucible/pkg/models"
)

// executeEscalation invokes the escalation target (architect or
// coordinator) with the full failure context. If the target reports a
// successful rework, the output is validated once before being accepted.
// Human escalations never reach this path.
func (o *Orchestrator) executeEscalation(ctx context.Context, task Task, esc retry.EscalationDecision, cycleState retry.RetryState) (bool, *models.BuilderOutput, retry.RoundResult, int64, int64) {
	agentID := string(esc.Level)
	o.logger.Log("escalating task %s to %s: %s", task.ID, agentID, esc.Reason)

	result, err := o.runner.Invoke(ctx, runner.Invocation{
		AgentID:    agentID,
		TaskID:     task.ID,
		Prompt:     buildEscalationPrompt(task, esc, cycleState),
		ModelClass: models.ModelClassHigh,
		Timeout:    o.escalationTimeout,
	})
	if err != nil {
		o.logger.Log("escalation invocation failed: %v", err)
		return false, nil, retry.RoundResult{}, 0, 0
	}

	builderOut := parseBuilderOutput(result.Output, agentID, task.ID)
	inTokens, outTokens := result.InputTokens, result.OutputTokens

	if builderOut.Status != models.BuilderSuccess {
		return false, builderOut, retry.RoundResult{}, inTokens, outTokens
	}

	if o.selfOnly() {
		round := retry.RoundResult{Status: models.VerdictApproved}
		return true, builderOut, round, inTokens, outTokens
	}

	// One re-validation round; the escalation target does not get retries.
	verdicts, vIn, vOut := o.runValidators(ctx, task, cycleState.CurrentAttempt, builderOut)
	inTokens += vIn
	outTokens += vOut

	agg := verdict.Aggregate(verdicts)
	round := retry.RoundFromVerdicts(agg, verdicts)
	if round.Status != models.VerdictApproved {
		return false, builderOut, round, inTokens, outTokens
	}
	return true, builderOut, round, inTokens, outTokens
}

// buildEscalationPrompt gives the escalation target everything the failed
// cycle learned: the task, the attempt history, and the suggested action.
func buildEscalationPrompt(task Task, esc retry.EscalationDecision, cycleState retry.RetryState) string {
	var sb strings.Builder

	sb.WriteString("# Escalated Task\n\n")
	sb.WriteString(fmt.Sprintf("**Task**: %s\n\n", task.Title))
	sb.WriteString(fmt.Sprintf("**Description**:\n%s\n\n", task.Description))

	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("**Acceptance Criteria**:\n")
		for i, criteria := range task.AcceptanceCriteria {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, criteria))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("**Escalation Reason**: %s\n\n", esc.Reason))
	if esc.Context.SuggestedAction != "" {
		sb.WriteString(fmt.Sprintf("**Suggested Action**: %s\n\n", esc.Context.SuggestedAction))
	}

	if len(esc.Context.PersistentIssues) > 0 {
		sb.WriteString("**Persistent Issues**:\n")
		for _, issue := range esc.Context.PersistentIssues {
			sb.WriteString(fmt.Sprintf("- %s\n", issue))
		}
		sb.WriteString("\n")
	}

	if len(cycleState.History) > 0 {
		sb.WriteString("## Attempt History\n\n")
		for _, attempt := range cycleState.History {
			sb.WriteString(fmt.Sprintf("### Attempt %d (%s)\n", attempt.Number, attempt.Action))
			for _, issue := range attempt.Issues {
				sb.WriteString(fmt.Sprintf("- %s\n", issue))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("The previous builder could not complete this task. Rework it and report ")
	sb.WriteString("your result as JSON with fields: `status`, `summary`, `evidence`, ")
	sb.WriteString("`files_modified`, and `self_validation`.\n")

	return sb.String()
}
