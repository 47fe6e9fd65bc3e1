package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/cycle"
	"github.com/crucible-dev/crucible/internal/runner"
	"github.com/crucible-dev/crucible/internal/state"
	"github.com/crucible-dev/crucible/pkg/models"
)

var (
	runTaskID      string
	runTitle       string
	runCriteria    []string
	runValidators  string
	runSelfOnly    bool
	runMaxAttempts int
	runNoStore     bool
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Run a build-validate cycle for a task",
	Long: `Run one build-validate cycle.

The builder agent implements the task, then each configured validator
reviews the submission in parallel. A rejected round is retried with the
validators' feedback until the work is approved, the attempt ceiling is
reached, or the failure shape calls for escalation.

Validators default to the built-in set (syntax, logic, security,
integration). Use --validators to load a custom set from a YAML file, or
--self-only to trust the builder's own validation pass.

Agents run against the Anthropic API by default. With bridge.enabled in
the configuration, prompts are written to the bridge directory instead
and responses are read back from it, so any externally hosted agent can
serve the cycle.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runTaskID, "task-id", "", "Task ID (generated when empty)")
	runCmd.Flags().StringVar(&runTitle, "title", "", "Short task title (defaults to the description's first line)")
	runCmd.Flags().StringArrayVar(&runCriteria, "criterion", nil, "Acceptance criterion (repeatable)")
	runCmd.Flags().StringVar(&runValidators, "validators", "", "Path to a validator registry YAML file")
	runCmd.Flags().BoolVar(&runSelfOnly, "self-only", false, "Skip validators; trust the builder's self-validation")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", 0, "Override the configured attempt ceiling")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Skip persisting the cycle to the audit store")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the cycle result as JSON")
}

func runTask(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	agentRunner, err := buildRunner(cfg)
	if err != nil {
		return err
	}

	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	var store *state.DB
	if !runNoStore && cfg.Storage.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("creating storage directory: %w", err)
		}
		store, err = state.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migrating audit store: %w", err)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	logger := cycle.NewDebugLoggerForProject(cwd)
	defer logger.Close()

	maxAttempts := cfg.Retry.MaxAttempts
	if runMaxAttempts > 0 {
		maxAttempts = runMaxAttempts
	}

	orch := cycle.New(agentRunner, registry, cycle.Options{
		MaxAttempts:       maxAttempts,
		BuilderTimeout:    cfg.Timeouts.Builder,
		ValidatorTimeout:  cfg.Timeouts.Validator,
		EscalationTimeout: cfg.Timeouts.Escalation,
		Store:             store,
		Events:            printEvent,
		Logger:            logger,
	})

	title := runTitle
	if title == "" {
		title = firstLine(description)
	}

	task := cycle.Task{
		ID:                 runTaskID,
		Title:              title,
		Description:        description,
		AcceptanceCriteria: runCriteria,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := orch.RunCycle(ctx, task)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// buildRunner selects the agent transport from the configuration: the
// file bridge when enabled, the Anthropic API otherwise.
func buildRunner(cfg *config.Config) (runner.AgentRunner, error) {
	if cfg.Bridge.Enabled {
		bridge, err := runner.NewFileBridgeRunner(cfg.Bridge.Dir)
		if err != nil {
			return nil, fmt.Errorf("setting up file bridge: %w", err)
		}
		return bridge, nil
	}

	clientCfg := runner.ClientConfig{
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		ModelClasses:  modelClasses(cfg),
	}

	if !cfg.Anthropic.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or run: crucible config anthropic.api_key <key>", err)
		}
		clientCfg.APIKey = key
	}

	client, err := runner.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	return runner.NewAPIRunner(client), nil
}

func modelClasses(cfg *config.Config) map[models.ModelClass]string {
	classes := map[models.ModelClass]string{}
	if cfg.Models.Low != "" {
		classes[models.ModelClassLow] = cfg.Models.Low
	}
	if cfg.Models.Medium != "" {
		classes[models.ModelClassMedium] = cfg.Models.Medium
	}
	if cfg.Models.High != "" {
		classes[models.ModelClassHigh] = cfg.Models.High
	}
	return classes
}

func buildRegistry() (*cycle.Registry, error) {
	if runSelfOnly {
		return nil, nil
	}
	if runValidators != "" {
		registry, err := cycle.LoadRegistry(runValidators)
		if err != nil {
			return nil, fmt.Errorf("loading validators: %w", err)
		}
		return registry, nil
	}
	return cycle.DefaultRegistry(), nil
}

func printEvent(ev cycle.Event) {
	switch ev.Type {
	case cycle.EventBuilderStarted:
		fmt.Printf("%s attempt %d: builder working...\n", color.CyanString("▶"), ev.Attempt+1)
	case cycle.EventValidationStarted:
		fmt.Printf("%s attempt %d: validating...\n", color.CyanString("▶"), ev.Attempt+1)
	case cycle.EventValidatorFinished:
		fmt.Printf("  %s\n", ev.Message)
	case cycle.EventDecision:
		fmt.Printf("%s %s\n", color.YellowString("→"), ev.Message)
	case cycle.EventEscalated:
		fmt.Printf("%s %s\n", color.MagentaString("⇧"), ev.Message)
	}
}

func printResult(result *cycle.CycleResult) {
	fmt.Println()
	if result.Success {
		fmt.Printf("%s Cycle succeeded after %d retr%s\n",
			color.GreenString("✓"), result.RetryCount, pluralY(result.RetryCount))
	} else {
		fmt.Printf("%s Cycle %s\n", color.RedString("✗"), result.Status)
	}
	fmt.Printf("  Task: %s\n", result.TaskID)
	fmt.Printf("  Tokens: %d in / %d out\n", result.InputTokens, result.OutputTokens)

	if len(result.Issues) > 0 {
		fmt.Println("  Open issues:")
		for _, issue := range result.Issues {
			fmt.Printf("    - %s\n", issue)
		}
	}

	if result.Escalation != nil && result.Escalation.ShouldEscalate {
		fmt.Printf("  Escalated to: %s (%s)\n", result.Escalation.Level, result.Escalation.Reason)
	}

	if result.Report != nil {
		fmt.Println()
		fmt.Println(color.New(color.Bold).Sprint("Failure report"))
		fmt.Printf("  Root cause: %s\n", result.Report.RootCauseAnalysis)
		fmt.Printf("  Recommended: %s\n", result.Report.RecommendedAction)
		if len(result.Report.PersistentIssues) > 0 {
			fmt.Println("  Persistent issues:")
			for _, issue := range result.Report.PersistentIssues {
				fmt.Printf("    - %s\n", issue)
			}
		}
		if result.CycleID != "" {
			fmt.Printf("  Full report: crucible report %s\n", result.CycleID)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.TrimSpace(s)
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
