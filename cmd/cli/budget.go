package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mledur/quill/pkg/budget"
)

// NewBudgetCommand creates the budget command.
func NewBudgetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect a saved conversation snapshot",
		RunE:  runBudget,
	}

	cmd.Flags().String("snapshot", "", "conversation snapshot path (default ~/.quill/session.json)")

	return cmd
}

func runBudget(cmd *cobra.Command, args []string) error {
	snapshotFlag, _ := cmd.Flags().GetString("snapshot")
	snapshotPath, err := resolveSnapshotPath(snapshotFlag)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("reading snapshot %s: %w", snapshotPath, err)
	}

	manager, err := budget.Restore(data)
	if err != nil {
		return err
	}

	printSummary(cmd, manager.Summary())
	return nil
}

func printSummary(cmd *cobra.Command, s budget.Summary) {
	cmd.Printf("Max tokens:          %d\n", s.MaxTokens)
	cmd.Printf("Reserve (response):  %d\n", s.ReserveForResponse)
	cmd.Printf("Reserve (extra):     %d\n", s.ReserveTokens)
	cmd.Printf("Available tokens:    %d\n", s.AvailableTokens)
	cmd.Printf("Used tokens:         %d\n", s.UsedTokens)
	cmd.Printf("Remaining tokens:    %d\n", s.RemainingTokens)
	cmd.Printf("Usage:               %.1f%%\n", s.UsagePercent)
	if s.OverBudget {
		cmd.Println("Over budget:         yes")
	}
	cmd.Printf("Strategy:            %s\n", s.Strategy)
	if s.KeepFirstTurns > 0 {
		cmd.Printf("Protected turns:     %d\n", s.KeepFirstTurns)
	}
	cmd.Printf("Messages:            %d", s.MessageCount)
	if s.MessageCount > 0 {
		cmd.Printf(" (system %d, user %d, assistant %d)",
			s.MessagesByRole[budget.RoleSystem],
			s.MessagesByRole[budget.RoleUser],
			s.MessagesByRole[budget.RoleAssistant])
	}
	cmd.Println()
	if s.MessageCount > 0 {
		cmd.Printf("Largest message:     %d tokens\n", s.LargestMessageTokens)
		cmd.Printf("Mean message:        %.1f tokens\n", s.MeanMessageTokens)
	}
	if s.TrimmedCount > 0 {
		cmd.Printf("Trimmed:             %d messages / %d tokens\n", s.TrimmedCount, s.TrimmedTokens)
	}
}
