package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"livepush/internal/config"
	"livepush/internal/deploy"
	"livepush/internal/gitrepo"
	"livepush/internal/history"
	"livepush/internal/site"
	"livepush/internal/sshexec"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push [live|BRANCH]",
	Short: "Push a snapshot branch to staging or live",
	Long: `Push a live-YYYYMMDD snapshot branch to a deployment environment.

With no argument the newest local live-* branch goes to staging. The single
argument 'live' promotes the newest snapshot to the live environment; any
other argument names the branch to push to staging.

Examples:
  livepush push                  # newest snapshot -> staging
  livepush push live             # newest snapshot -> live
  livepush push live-20230115    # named snapshot -> staging`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	envName := config.EnvStaging
	branch := ""
	if len(args) == 1 {
		if args[0] == config.EnvLive {
			envName = config.EnvLive
		} else {
			branch = args[0]
		}
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

	markers := site.NewClient()
	resolver := &deploy.Resolver{Repo: repo, Site: markers}

	newRev, err := resolver.Local(branch)
	if err != nil {
		return err
	}
	current, err := resolver.Remote(cmd.Context(), env)
	if err != nil {
		return fmt.Errorf("cannot read the current revision of %s: %w", envName, err)
	}

	journal := openJournal()
	if journal != nil {
		defer journal.Close()
	}

	o := newOrchestrator(cfg, repo, markers, journal)
	err = o.Push(cmd.Context(), deploy.ModeSet, env, newRev, current)
	if errors.Is(err, deploy.ErrDeclined) {
		fmt.Println("Push declined, nothing changed.")
		return nil
	}
	return err
}

// newOrchestrator wires the production workflow: real SSH, real site client,
// interactive confirmation on the operator's terminal.
func newOrchestrator(cfg *config.Config, repo *gitrepo.Repo, markers *site.Client, journal *history.Journal) *deploy.Orchestrator {
	o := &deploy.Orchestrator{
		Repo:      repo,
		SSH:       sshexec.NewClient(),
		Markers:   markers,
		Regen:     markers,
		Confirm:   deploy.TerminalConfirm(repo.Path(), os.Stdin, os.Stdout),
		Out:       os.Stdout,
		Artifacts: artifactPaths(cfg, repo.Path()),
	}
	// A typed nil journal must not end up inside the interface.
	if journal != nil {
		o.Journal = journal
	}
	return o
}

// artifactPaths anchors relative artifact entries at the repository root.
func artifactPaths(cfg *config.Config, repoPath string) []string {
	paths := make([]string, 0, len(cfg.Artifacts))
	for _, artifact := range cfg.Artifacts {
		if !filepath.IsAbs(artifact) {
			artifact = filepath.Join(repoPath, artifact)
		}
		paths = append(paths, artifact)
	}
	return paths
}
