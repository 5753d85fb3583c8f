package main

import (
	"fmt"

	"livepush/internal/config"
	"livepush/internal/revision"
	"livepush/internal/site"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [staging|live]",
	Short: "Show local and remote revision state",
	Long: `Show the newest local snapshot branch and the REVISION/PRIOR-REVISION
markers of one or both environments.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	envNames := []string{config.EnvStaging, config.EnvLive}
	if len(args) == 1 {
		if args[0] != config.EnvStaging && args[0] != config.EnvLive {
			return fmt.Errorf("unknown environment '%s' (expected '%s' or '%s')", args[0], config.EnvStaging, config.EnvLive)
		}
		envNames = []string{args[0]}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := openRepo()
	if err != nil {
		return err
	}

	branches, err := repo.LocalBranches()
	if err != nil {
		return err
	}
	if newest, ok := revision.NewestSnapshot(branches); ok {
		fmt.Printf("Local newest snapshot: %s\n", newest)
	} else {
		fmt.Println("Local newest snapshot: none (run 'livepush build')")
	}

	markers := site.NewClient()
	for _, name := range envNames {
		env, err := cfg.Environment(name)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s (%s)\n", name, env.SiteURL)
		if current, err := markers.FetchMarker(cmd.Context(), env.SiteURL, site.MarkerRevision); err != nil {
			fmt.Printf("  REVISION:       unreadable (%v)\n", err)
		} else {
			fmt.Printf("  REVISION:       %s\n", current)
		}
		if prior, err := markers.FetchMarker(cmd.Context(), env.SiteURL, site.MarkerPriorRevision); err != nil {
			fmt.Printf("  PRIOR-REVISION: unreadable (%v)\n", err)
		} else {
			fmt.Printf("  PRIOR-REVISION: %s\n", prior)
		}
	}
	return nil
}
