package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/state"
)

var (
	reportTaskID string
	reportLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report [cycle-id]",
	Short: "Show recorded cycles and failure reports",
	Long: `Inspect the audit store.

Without arguments, lists recent cycles. With a cycle ID, shows that
cycle's attempt history and, when the cycle did not succeed, its failure
report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportTaskID, "task", "", "Only list cycles for this task ID")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "Maximum number of cycles to list")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Storage.Path == "" {
		fmt.Println("Persistence is disabled (storage.path is empty).")
		return nil
	}
	if _, err := os.Stat(cfg.Storage.Path); os.IsNotExist(err) {
		fmt.Println("No cycles recorded yet. Run 'crucible run <task>' to start.")
		return nil
	}

	db, err := state.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate audit store: %w", err)
	}

	if len(args) == 1 {
		return showCycle(db, args[0])
	}
	return listCycles(db)
}

func listCycles(db *state.DB) error {
	cycles, err := db.ListCycles(reportTaskID, reportLimit)
	if err != nil {
		return fmt.Errorf("list cycles: %w", err)
	}

	if len(cycles) == 0 {
		fmt.Println("No cycles recorded.")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-8s  %-12s  %s\n", "CYCLE", "STATUS", "ATTEMPTS", "TOKENS", "STARTED")
	for _, c := range cycles {
		tokens := fmt.Sprintf("%d/%d", c.InputTokens, c.OutputTokens)
		fmt.Printf("%-36s  %-10s  %-8d  %-12s  %s\n",
			c.ID, statusString(c.Status), c.Attempts, tokens,
			c.StartedAt.Local().Format(time.DateTime))
	}
	return nil
}

func showCycle(db *state.DB, cycleID string) error {
	c, err := db.GetCycle(cycleID)
	if err != nil {
		return fmt.Errorf("get cycle: %w", err)
	}
	if c == nil {
		return fmt.Errorf("no cycle with ID %s", cycleID)
	}

	fmt.Printf("Cycle:    %s\n", c.ID)
	fmt.Printf("Task:     %s\n", c.TaskID)
	fmt.Printf("Status:   %s\n", statusString(c.Status))
	fmt.Printf("Attempts: %d (max %d)\n", c.Attempts, c.MaxAttempts)
	fmt.Printf("Tokens:   %d in / %d out\n", c.InputTokens, c.OutputTokens)
	fmt.Printf("Started:  %s\n", c.StartedAt.Local().Format(time.DateTime))
	if c.FinishedAt != nil {
		fmt.Printf("Finished: %s\n", c.FinishedAt.Local().Format(time.DateTime))
	}

	attempts, err := db.ListAttempts(c.ID)
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	if len(attempts) > 0 {
		fmt.Println("\nAttempts:")
		for _, a := range attempts {
			fmt.Printf("  %d. verdict=%s action=%s\n", a.Number+1, a.Verdict, a.Action)
			for _, issue := range a.Issues {
				fmt.Printf("     - %s\n", issue)
			}
		}
	}

	report, err := db.GetFailureReport(c.ID)
	if err != nil {
		return fmt.Errorf("get failure report: %w", err)
	}
	if report == nil {
		return nil
	}

	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprint("Failure report"))
	fmt.Printf("  Root cause: %s\n", report.RootCauseAnalysis)
	fmt.Printf("  Recommended: %s\n", report.RecommendedAction)
	if len(report.PersistentIssues) > 0 {
		fmt.Println("  Persistent issues:")
		for _, issue := range report.PersistentIssues {
			fmt.Printf("    - %s\n", issue)
		}
	}
	if len(report.Evidence) > 0 {
		fmt.Println("  Evidence:")
		for _, ev := range report.Evidence {
			fmt.Printf("    - %s\n", strings.TrimSpace(ev))
		}
	}
	return nil
}

func statusString(status string) string {
	switch status {
	case "success":
		return color.GreenString(status)
	case "failed", "escalated":
		return color.RedString(status)
	default:
		return status
	}
}
