// Package build creates live snapshot branches: it runs the configured
// site-generator commands on a fresh live-YYYYMMDD[.VER] branch and commits
// whatever they produce.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"livepush/internal/config"
	"livepush/internal/gitrepo"
	"livepush/internal/revision"
	"livepush/pkg/cmdutil"
)

// ErrUncommittedChanges blocks the build while the worktree is dirty: a
// snapshot must capture committed state only.
var ErrUncommittedChanges = errors.New("worktree has uncommitted changes; commit or stash them before building a snapshot")

// WrongBranchError reports a build attempted from a branch other than the
// configured source branch.
type WrongBranchError struct {
	Current string
	Want    string
}

func (e *WrongBranchError) Error() string {
	return fmt.Sprintf("snapshots are built from branch '%s', but '%s' is checked out", e.Want, e.Current)
}

// CommandRunner executes one generator command. Defaults to cmdutil; faked
// in tests.
type CommandRunner func(ctx context.Context, dir string, timeout time.Duration, argv []string) ([]byte, error)

// Builder produces snapshot branches from the source branch.
type Builder struct {
	Repo   *gitrepo.Repo
	Config *config.Config
	Run    CommandRunner
	Out    io.Writer

	// Now is the clock used to date snapshot names. Overridden in tests.
	Now func() time.Time
}

// Build runs the whole snapshot pipeline and returns the revision of the
// new branch. On any failure after branch creation, the branch is abandoned
// and the worktree returned to the source branch.
func (b *Builder) Build(ctx context.Context) (revision.Revision, error) {
	runner := b.Run
	if runner == nil {
		runner = cmdutil.RunWithTimeout
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}

	clean, err := b.Repo.IsClean()
	if err != nil {
		return revision.Revision{}, err
	}
	if !clean {
		return revision.Revision{}, ErrUncommittedChanges
	}

	current, err := b.Repo.CurrentBranch()
	if err != nil {
		return revision.Revision{}, err
	}
	if current != b.Config.SourceBranch {
		return revision.Revision{}, &WrongBranchError{Current: current, Want: b.Config.SourceBranch}
	}

	branches, err := b.Repo.LocalBranches()
	if err != nil {
		return revision.Revision{}, err
	}
	name := revision.NextSnapshotName(now(), branches)

	fmt.Fprintf(b.Out, "Building snapshot %s from %s\n", name, b.Config.SourceBranch)
	if err := b.Repo.CreateAndCheckout(name); err != nil {
		return revision.Revision{}, err
	}

	timeout := time.Duration(b.Config.GeneratorTimeout) * time.Second
	for _, argv := range b.Config.Generator {
		fmt.Fprintf(b.Out, "Running %s\n", cmdutil.FormatCommand(argv))
		output, err := runner(ctx, b.Repo.Path(), timeout, argv)
		if err != nil {
			b.abandon(name)
			return revision.Revision{}, fmt.Errorf("generator %s failed: %w\noutput:\n%s", cmdutil.FormatCommand(argv), err, output)
		}
	}

	sha, err := b.Repo.CommitAll("Site snapshot " + name)
	if err != nil {
		b.abandon(name)
		return revision.Revision{}, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	if err := b.Repo.Checkout(b.Config.SourceBranch); err != nil {
		return revision.Revision{}, fmt.Errorf("snapshot %s built, but returning to %s failed: %w", name, b.Config.SourceBranch, err)
	}

	rev := revision.Revision{Branch: name, SHA: sha}
	fmt.Fprintf(b.Out, "Snapshot ready: %s\n", rev)
	return rev, nil
}

// abandon drops a half-built snapshot branch and restores the source
// branch. The forced checkout discards whatever the generators produced.
func (b *Builder) abandon(name string) {
	if err := b.Repo.Checkout(b.Config.SourceBranch); err != nil {
		fmt.Fprintf(b.Out, "Warning: failed to return to %s: %v\n", b.Config.SourceBranch, err)
		return
	}
	if err := b.Repo.DeleteBranch(name); err != nil {
		fmt.Fprintf(b.Out, "Warning: failed to delete abandoned snapshot %s: %v\n", name, err)
	}
}
