package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"livepush/internal/config"
	"livepush/internal/deploy"
	"livepush/internal/site"
	"livepush/internal/sshexec"

	"github.com/spf13/cobra"
)

const doctorCheckTimeout = 15 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight diagnostics",
	Long: `Check everything a push needs before it needs it: the configuration
file, the local git repository, the origin remote, SSH reachability of each
environment host and readability of each environment's revision markers.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	failed := false
	report := func(err error, what string) {
		if err != nil {
			failed = true
			fmt.Printf("[FAIL] %s: %v\n", what, err)
			return
		}
		fmt.Printf("[ ok ] %s\n", what)
	}

	path := configFile
	if path == "" {
		found, err := config.Find()
		report(err, "configuration file located")
		if err != nil {
			return fmt.Errorf("diagnostics failed")
		}
		path = found
	}
	cfg, err := config.Load(path)
	report(err, fmt.Sprintf("configuration %s valid", path))
	if err != nil {
		return fmt.Errorf("diagnostics failed")
	}

	repo, repoErr := openRepo()
	report(repoErr, "git repository present")
	if repoErr == nil {
		branch, err := repo.CurrentBranch()
		report(err, fmt.Sprintf("current branch readable (%s)", branch))

		_, err = repo.PushURL(deploy.DefaultRemote)
		report(err, fmt.Sprintf("remote '%s' configured", deploy.DefaultRemote))
	}

	ssh := sshexec.NewClient()
	markers := site.NewClient()

	var envNames []string
	for name := range cfg.Environments {
		envNames = append(envNames, name)
	}
	sort.Strings(envNames)

	for _, name := range envNames {
		env := cfg.Environments[name]

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorCheckTimeout)
		err := ssh.CheckHost(ctx, sshexec.Target{Host: env.Host, User: env.User, Port: env.Port})
		cancel()
		report(err, fmt.Sprintf("%s: SSH to %s", name, env.Host))

		ctx, cancel = context.WithTimeout(cmd.Context(), doctorCheckTimeout)
		_, err = markers.FetchMarker(ctx, env.SiteURL, site.MarkerRevision)
		cancel()
		report(err, fmt.Sprintf("%s: REVISION marker at %s", name, env.SiteURL))
	}

	if failed {
		return fmt.Errorf("diagnostics failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}
