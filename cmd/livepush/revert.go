package main

import (
	"errors"
	"fmt"

	"livepush/internal/config"
	"livepush/internal/deploy"
	"livepush/internal/site"

	"github.com/spf13/cobra"
)

var revertCmd = &cobra.Command{
	Use:   "revert [staging|live]",
	Short: "Roll an environment back one revision",
	Long: `Roll an environment back to the revision recorded in its PRIOR-REVISION
marker. Only one level of rollback exists: reverting twice in a row swaps the
same two revisions back and forth.

The default target is staging.

Example:
  livepush revert live`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRevert,
}

func runRevert(cmd *cobra.Command, args []string) error {
	envName := config.EnvStaging
	if len(args) == 1 {
		if args[0] != config.EnvStaging && args[0] != config.EnvLive {
			return fmt.Errorf("unknown environment '%s' (expected '%s' or '%s')", args[0], config.EnvStaging, config.EnvLive)
		}
		envName = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := cfg.Environment(envName)
	if err != nil {
		return err
	}
	repo, err := openRepo()
	if err != nil {
		return err
	}

	journal := openJournal()
	if journal != nil {
		defer journal.Close()
	}

	o := newOrchestrator(cfg, repo, site.NewClient(), journal)
	err = o.Revert(cmd.Context(), env)
	if errors.Is(err, deploy.ErrDeclined) {
		fmt.Println("Revert declined, nothing changed.")
		return nil
	}
	return err
}
