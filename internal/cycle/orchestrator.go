package cycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crucible-dev/crucible/internal/retry"
	"github.com/crucible-dev/crucible/internal/runner"
	"github.com/crucible-dev/crucible/internal/state"
	"github.com/crucible-dev/crucible/internal/verdict"
	"github.com/crucible-dev/crucible/pkg/models"
)

// Options configures an Orchestrator.
type Options struct {
	// MaxAttempts is the per-task attempt ceiling.
	MaxAttempts int
	// BuilderAgentID names the builder persona. Defaults to "builder".
	BuilderAgentID string
	// BuilderModelClass is the builder's capability tier. Defaults to medium.
	BuilderModelClass models.ModelClass
	// BuilderTimeout bounds each builder invocation.
	BuilderTimeout time.Duration
	// ValidatorTimeout bounds each validator invocation without its own
	// timeout in the registry.
	ValidatorTimeout time.Duration
	// EscalationTimeout bounds escalation-target invocations.
	EscalationTimeout time.Duration
	// Store persists cycles, attempts, and failure reports. Nil disables
	// persistence.
	Store *state.DB
	// Events receives progress notifications. Optional.
	Events EventSink
	// Logger is the debug logger. Nil means no logging.
	Logger *DebugLogger
}

// Orchestrator drives build-validate cycles.
type Orchestrator struct {
	runner     runner.AgentRunner
	validators *Registry
	store      *state.DB
	events     EventSink
	logger     *DebugLogger

	maxAttempts       int
	builderAgentID    string
	builderModelClass models.ModelClass
	builderTimeout    time.Duration
	validatorTimeout  time.Duration
	escalationTimeout time.Duration
}

// CycleResult is the terminal outcome of one cycle.
type CycleResult struct {
	// CycleID is the persisted cycle's ID, empty when persistence is off.
	CycleID string `json:"cycle_id,omitempty"`
	// TaskID is the task the cycle ran for.
	TaskID string `json:"task_id"`
	// Success is true when the cycle ended with an approved submission.
	Success bool `json:"success"`
	// BuilderPassed is true when the final builder run reported success.
	BuilderPassed bool `json:"builder_passed"`
	// ValidatorPassed is true when the final validation round approved.
	ValidatorPassed bool `json:"validator_passed"`
	// RetryCount is the number of attempts beyond the first.
	RetryCount int `json:"retry_count"`
	// Status is the cycle's terminal status.
	Status retry.CycleStatus `json:"status"`
	// Evidence is the flattened evidence from the final round.
	Evidence []string `json:"evidence,omitempty"`
	// Issues is the final round's issue list.
	Issues []string `json:"issues,omitempty"`
	// Escalation is set when the cycle escalated.
	Escalation *retry.EscalationDecision `json:"escalation,omitempty"`
	// Report is the failure report for unsuccessful cycles.
	Report *retry.FailureReport `json:"report,omitempty"`
	// InputTokens and OutputTokens are the cycle's total usage.
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// New creates an orchestrator. A nil registry (or one with no validators)
// runs cycles in self-only mode, where the builder's own validation pass
// decides the outcome.
func New(r runner.AgentRunner, validators *Registry, opts Options) *Orchestrator {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	builderAgentID := opts.BuilderAgentID
	if builderAgentID == "" {
		builderAgentID = "builder"
	}
	builderModelClass := opts.BuilderModelClass
	if builderModelClass == "" {
		builderModelClass = models.ModelClassMedium
	}
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger()
	}

	return &Orchestrator{
		runner:            r,
		validators:        validators,
		store:             opts.Store,
		events:            opts.Events,
		logger:            logger,
		maxAttempts:       maxAttempts,
		builderAgentID:    builderAgentID,
		builderModelClass: builderModelClass,
		builderTimeout:    opts.BuilderTimeout,
		validatorTimeout:  opts.ValidatorTimeout,
		escalationTimeout: opts.EscalationTimeout,
	}
}

func (o *Orchestrator) selfOnly() bool {
	return o.validators == nil || len(o.validators.Validators) == 0
}

// RunCycle runs the build-validate loop for one task until it terminates.
// The returned error covers infrastructure problems (persistence); agent
// failures are absorbed into the cycle result.
func (o *Orchestrator) RunCycle(ctx context.Context, task Task) (*CycleResult, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	var cycleID string
	if o.store != nil {
		record, err := o.store.CreateCycle(task.ID, o.maxAttempts)
		if err != nil {
			return nil, fmt.Errorf("creating cycle record: %w", err)
		}
		cycleID = record.ID
	}

	cycleState := retry.NewState(task.ID, o.maxAttempts)
	feedback := ""

	var (
		inputTokens, outputTokens int64
		lastBuilder               *models.BuilderOutput
		lastRound                 retry.RoundResult
		escalation                *retry.EscalationDecision
	)

	for {
		attempt := cycleState.CurrentAttempt
		o.emit(EventBuilderStarted, task.ID, attempt, "invoking builder")

		builderOut, round, verdicts, in, out := o.runAttempt(ctx, task, attempt, feedback)
		inputTokens += in
		outputTokens += out
		lastBuilder, lastRound = builderOut, round

		decision := retry.ShouldRetry(cycleState, round)
		o.emit(EventDecision, task.ID, attempt, fmt.Sprintf("%s: %s", decision.Action, decision.Reason))

		// An attempt is recorded exactly once, with its final action. When
		// an escalation target resolves the task, the resolution happens
		// here, before the record, so the terminal status is written once
		// and never appended to afterward.
		action := decision.Action
		if action == retry.ActionEscalate {
			esc := retry.DetermineEscalation(cycleState, round)
			escalation = &esc
			o.emit(EventEscalated, task.ID, attempt, fmt.Sprintf("level=%s reason=%s", esc.Level, esc.Reason))

			if esc.ShouldEscalate && esc.Level != models.EscalateHuman {
				resolved, rBuilder, rRound, rIn, rOut := o.executeEscalation(ctx, task, esc, cycleState)
				inputTokens += rIn
				outputTokens += rOut
				if resolved {
					lastBuilder, lastRound = rBuilder, rRound
					action = retry.ActionSuccess
				}
			}
		}

		var agg *models.AggregatedVerdict
		if len(verdicts) > 0 {
			combined := verdict.Aggregate(verdicts)
			agg = &combined
		}
		cycleState = cycleState.RecordAttempt(builderOut, agg, round.Issues, action)

		if o.store != nil {
			if err := o.store.RecordAttempt(cycleID, attempt, string(round.Status), action, round.Issues); err != nil {
				o.logger.Log("persisting attempt %d failed: %v", attempt, err)
			}
		}

		if action != retry.ActionRetry {
			return o.finish(task, cycleID, cycleState, lastRound, lastBuilder, escalation, inputTokens, outputTokens)
		}

		feedback = buildRetryFeedback(verdicts)
		if feedback == "" {
			feedback = issueFeedback(round.Issues)
		}
	}
}

// runAttempt performs one builder invocation plus its validation round and
// returns the round result the state machine decides on.
func (o *Orchestrator) runAttempt(ctx context.Context, task Task, attempt int, feedback string) (*models.BuilderOutput, retry.RoundResult, []models.ValidatorVerdict, int64, int64) {
	result, err := o.runner.Invoke(ctx, runner.Invocation{
		AgentID:    o.builderAgentID,
		TaskID:     task.ID,
		Prompt:     buildBuilderPrompt(task, attempt, feedback),
		ModelClass: o.builderModelClass,
		Timeout:    o.builderTimeout,
	})
	if err != nil {
		// Transport failures flow through the state machine as a rejected
		// round, not a cycle abort.
		issue := fmt.Sprintf("builder execution failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			issue = fmt.Sprintf("builder execution timeout: %v", err)
		}
		o.emit(EventBuilderFinished, task.ID, attempt, issue)
		return nil, retry.RoundResult{Status: models.VerdictRejected, Issues: []string{issue}}, nil, 0, 0
	}

	builderOut := parseBuilderOutput(result.Output, o.builderAgentID, task.ID)
	o.emit(EventBuilderFinished, task.ID, attempt, string(builderOut.Status))

	if builderOut.ShortCircuits() {
		issues := []string{fmt.Sprintf("builder reported status %s", builderOut.Status)}
		if builderOut.SelfValidation != nil && builderOut.SelfValidation.LastError != "" {
			issues = append(issues, builderOut.SelfValidation.LastError)
		}
		return builderOut, retry.RoundResult{Status: models.VerdictRejected, Issues: issues},
			nil, result.InputTokens, result.OutputTokens
	}

	if o.selfOnly() {
		round := retry.RoundResult{Status: models.VerdictApproved}
		if builderOut.Status != models.BuilderSuccess ||
			builderOut.SelfValidation == nil || !builderOut.SelfValidation.Passed {
			issues := []string{"builder self-validation did not pass"}
			if builderOut.SelfValidation != nil && builderOut.SelfValidation.LastError != "" {
				issues = append(issues, builderOut.SelfValidation.LastError)
			}
			round = retry.RoundResult{Status: models.VerdictRejected, Issues: issues}
		}
		return builderOut, round, nil, result.InputTokens, result.OutputTokens
	}

	o.emit(EventValidationStarted, task.ID, attempt, fmt.Sprintf("%d validators", len(o.validators.Validators)))
	verdicts, vIn, vOut := o.runValidators(ctx, task, attempt, builderOut)

	agg := verdict.Aggregate(verdicts)
	round := retry.RoundFromVerdicts(agg, verdicts)
	return builderOut, round, verdicts, result.InputTokens + vIn, result.OutputTokens + vOut
}

// runValidators fans out to every registered validator concurrently and
// waits for all of them. A failed or timed-out validator contributes a
// synthesized rejection instead of aborting the round.
func (o *Orchestrator) runValidators(ctx context.Context, task Task, attempt int, builder *models.BuilderOutput) ([]models.ValidatorVerdict, int64, int64) {
	specs := o.validators.Validators
	verdicts := make([]models.ValidatorVerdict, len(specs))
	inTokens := make([]int64, len(specs))
	outTokens := make([]int64, len(specs))

	prompt := buildValidatorPrompt(task, builder)

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec ValidatorSpec) {
			defer wg.Done()

			timeout := spec.Timeout
			if timeout <= 0 {
				timeout = o.validatorTimeout
			}

			result, err := o.runner.Invoke(ctx, runner.Invocation{
				AgentID:      spec.AgentID,
				TaskID:       task.ID,
				SystemPrompt: spec.SystemPrompt,
				Prompt:       prompt,
				ModelClass:   spec.ModelClass,
				Timeout:      timeout,
			})
			if err != nil {
				issue := fmt.Sprintf("validator execution failed: %v", err)
				if errors.Is(err, context.DeadlineExceeded) {
					issue = fmt.Sprintf("validator execution timeout: %v", err)
				}
				verdicts[i] = models.ValidatorVerdict{
					ValidatorKind: spec.Kind,
					TaskID:        task.ID,
					Status:        models.VerdictRejected,
					Issues:        []string{issue},
				}
				o.emit(EventValidatorFinished, task.ID, attempt, fmt.Sprintf("%s: %s", spec.Kind, issue))
				return
			}

			inTokens[i] = result.InputTokens
			outTokens[i] = result.OutputTokens
			verdicts[i] = verdict.Parse(result.Output, spec.Kind, task.ID)
			o.emit(EventValidatorFinished, task.ID, attempt, fmt.Sprintf("%s: %s", spec.Kind, verdicts[i].Status))
		}(i, spec)
	}
	wg.Wait()

	var in, out int64
	for i := range specs {
		in += inTokens[i]
		out += outTokens[i]
	}
	return verdicts, in, out
}

// finish records the cycle's terminal state and assembles the result.
func (o *Orchestrator) finish(task Task, cycleID string, cycleState retry.RetryState, round retry.RoundResult, builder *models.BuilderOutput, escalation *retry.EscalationDecision, inputTokens, outputTokens int64) (*CycleResult, error) {
	result := &CycleResult{
		CycleID:         cycleID,
		TaskID:          task.ID,
		Success:         cycleState.Status == retry.StatusSuccess,
		BuilderPassed:   builder != nil && builder.Status == models.BuilderSuccess,
		ValidatorPassed: round.Status == models.VerdictApproved,
		RetryCount:      max(cycleState.CurrentAttempt-1, 0),
		Status:          cycleState.Status,
		Issues:          round.Issues,
		Escalation:      escalation,
		InputTokens:     inputTokens,
		OutputTokens:    outputTokens,
	}
	for _, c := range round.Checks {
		if c.Evidence != "" {
			result.Evidence = append(result.Evidence, c.Evidence)
		}
	}

	if !result.Success {
		report := retry.GenerateFailureReport(task.ID, cycleState, round)
		result.Report = &report
	}

	if o.store != nil {
		if err := o.store.FinishCycle(cycleID, cycleState.Status, cycleState.CurrentAttempt, inputTokens, outputTokens); err != nil {
			return result, fmt.Errorf("finishing cycle record: %w", err)
		}
		if result.Report != nil {
			if err := o.store.SaveFailureReport(cycleID, *result.Report); err != nil {
				return result, fmt.Errorf("saving failure report: %w", err)
			}
		}
	}

	o.emit(EventCycleFinished, task.ID, cycleState.CurrentAttempt, string(cycleState.Status))
	return result, nil
}

// issueFeedback renders bare issue strings as a feedback section for
// rounds that produced no structured verdicts.
func issueFeedback(issues []string) string {
	if len(issues) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("**Issues**:\n")
	for _, issue := range issues {
		sb.WriteString(fmt.Sprintf("- %s\n", issue))
	}
	return sb.String()
}
