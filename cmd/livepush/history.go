package main

import (
	"fmt"

	"livepush/internal/config"
	"livepush/internal/history"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [staging|live|local]",
	Short: "List recent deployment attempts",
	Long: `List recent build, push and revert attempts from the local deployment
history database. Builds are journaled under the pseudo-environment 'local'.

The default target is staging.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of attempts to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	envName := config.EnvStaging
	if len(args) == 1 {
		if args[0] != config.EnvStaging && args[0] != config.EnvLive && args[0] != "local" {
			return fmt.Errorf("unknown environment '%s' (expected '%s', '%s' or 'local')", args[0], config.EnvStaging, config.EnvLive)
		}
		envName = args[0]
	}

	journal, err := history.NewJournal(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history database %s: %w", dbPath, err)
	}
	defer journal.Close()

	records, err := journal.GetDeploymentHistory(cmd.Context(), envName, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No recorded attempts for %s\n", envName)
		return nil
	}

	for _, r := range records {
		line := fmt.Sprintf("%s  %-6s %-8s %s", r.StartedAt.Format("2006-01-02 15:04:05"), r.Action, r.Status, r.Branch)
		if r.DurationSeconds != nil {
			line += fmt.Sprintf(" (%.1fs)", *r.DurationSeconds)
		}
		fmt.Println(line)
		if r.ErrorMessage != nil {
			fmt.Printf("    error: %s\n", *r.ErrorMessage)
		}
	}
	return nil
}
