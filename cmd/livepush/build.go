package main

import (
	"fmt"
	"os"
	"time"

	"livepush/internal/build"
	"livepush/internal/history"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a new live snapshot branch",
	Long: `Build a dated live-YYYYMMDD snapshot branch from the configured source
branch: run the site generator commands, commit whatever they produce, and
return to the source branch.

The worktree must be clean and the source branch must be checked out.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
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

	builder := &build.Builder{
		Repo:   repo,
		Config: cfg,
		Out:    os.Stdout,
	}

	start := time.Now()
	rev, buildErr := builder.Build(cmd.Context())

	if journal != nil {
		duration := time.Since(start).Seconds()
		status := "success"
		var errMsg *string
		if buildErr != nil {
			status = "failed"
			msg := buildErr.Error()
			errMsg = &msg
		}
		record := &history.Record{
			Environment:     "local",
			Action:          "build",
			Branch:          rev.Branch,
			SHA:             rev.SHA,
			Status:          status,
			DurationSeconds: &duration,
			ErrorMessage:    errMsg,
		}
		if _, err := journal.RecordDeployment(cmd.Context(), record); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to journal build: %v\n", err)
		}
	}

	if buildErr != nil {
		return buildErr
	}
	fmt.Printf("Push it to staging with: livepush push %s\n", rev.Branch)
	return nil
}
