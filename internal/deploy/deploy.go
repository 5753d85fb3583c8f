// Package deploy implements the push and revert workflow: validate the
// requested revision, confirm with the operator, push the branch, stream
// the update routine to the target host and trigger regeneration.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"livepush/internal/config"
	"livepush/internal/gitrepo"
	"livepush/internal/history"
	"livepush/internal/revision"
	"livepush/internal/sshexec"
	"livepush/pkg/cmdutil"
	"livepush/pkg/fileutil"
)

// Mode selects why a revision is being pushed. Revert mode is the same
// mechanism pointed at the previously applied revision.
type Mode string

const (
	ModeSet    Mode = "set"
	ModeRevert Mode = "revert"
)

// DefaultRemote is the git remote every push goes through.
const DefaultRemote = "origin"

// ScriptRunner executes a streamed script on a deployment host. Satisfied
// by sshexec.Client; faked in tests.
type ScriptRunner interface {
	RunScript(ctx context.Context, target sshexec.Target, script string) ([]byte, error)
}

// RegenTrigger fires the post-update regeneration request. Satisfied by
// site.Client.
type RegenTrigger interface {
	TriggerRegen(ctx context.Context, siteURL string) error
}

// Recorder journals deployment attempts. Satisfied by history.Journal.
type Recorder interface {
	RecordDeployment(ctx context.Context, record *history.Record) (int64, error)
}

// ConfirmFunc asks the operator whether to proceed with a push between two
// commits. It returns false on decline.
type ConfirmFunc func(ctx context.Context, oldSHA, newSHA string) (bool, error)

// Orchestrator drives one push or revert invocation. Any failure is fatal
// to the invocation; there are no retries at this layer.
type Orchestrator struct {
	Repo    *gitrepo.Repo
	SSH     ScriptRunner
	Markers MarkerFetcher
	Regen   RegenTrigger
	Journal Recorder // optional; a nil journal only disables bookkeeping
	Confirm ConfirmFunc
	Out     io.Writer

	// Artifacts are the local files whose existence verifies that
	// regeneration ran.
	Artifacts []string

	RemoteName string
}

// TerminalConfirm builds a ConfirmFunc that runs the interactive prompt on
// the operator's terminal, with diff and log views paginated by git itself.
func TerminalConfirm(repoPath string, in io.Reader, out io.Writer) ConfirmFunc {
	return func(ctx context.Context, oldSHA, newSHA string) (bool, error) {
		confirmer := &Confirmer{
			In:  in,
			Out: out,
			ShowDiff: func(ctx context.Context) error {
				return cmdutil.RunAttached(ctx, repoPath, []string{"git", "diff", oldSHA, newSHA})
			},
			ShowLog: func(ctx context.Context) error {
				return cmdutil.RunAttached(ctx, repoPath, []string{"git", "log", oldSHA + ".." + newSHA})
			},
		}
		return confirmer.Confirm(ctx)
	}
}

// Push runs the full workflow and journals the attempt, success or failure.
func (o *Orchestrator) Push(ctx context.Context, mode Mode, env *config.Environment, newRev, currentRev revision.Revision) error {
	start := time.Now()
	err := o.push(ctx, mode, env, newRev, currentRev)
	o.record(ctx, mode, env, newRev, currentRev, start, err)
	return err
}

func (o *Orchestrator) push(ctx context.Context, mode Mode, env *config.Environment, newRev, currentRev revision.Revision) error {
	// Step 1: the live environment only ever receives live-* snapshots.
	// This check runs before any remote contact.
	if env.Name == config.EnvLive && !revision.IsLiveBranch(newRev.Branch) {
		return &LiveBranchError{Branch: newRev.Branch}
	}

	remoteName := o.RemoteName
	if remoteName == "" {
		remoteName = DefaultRemote
	}

	// Step 2: the push goes wherever the configured origin points.
	pushURL, err := o.Repo.PushURL(remoteName)
	if err != nil {
		return err
	}

	// Step 3: both branch references must resolve locally.
	currentSHA, err := o.Repo.BranchSHA(currentRev.Branch)
	if err != nil {
		return fmt.Errorf("current revision: %w", err)
	}
	newSHA, err := o.Repo.BranchSHA(newRev.Branch)
	if err != nil {
		return fmt.Errorf("new revision: %w", err)
	}
	current := revision.Revision{Branch: currentRev.Branch, SHA: currentSHA}
	target := revision.Revision{Branch: newRev.Branch, SHA: newSHA}

	// Step 4: summary, with an explicit notice when nothing would change.
	fmt.Fprintf(o.Out, "Environment: %s\n", env.Name)
	fmt.Fprintf(o.Out, "Push URL:    %s\n", pushURL)
	fmt.Fprintf(o.Out, "Current:     %s (%s)\n", current.Branch, current.ShortSHA())
	fmt.Fprintf(o.Out, "New:         %s (%s)\n", target.Branch, target.ShortSHA())
	if current.SHA == target.SHA {
		fmt.Fprintln(o.Out, "Notice: no changes detected, both revisions point at the same commit")
	}

	// Step 5: interactive confirmation. Declining leaves everything
	// untouched.
	ok, err := o.Confirm(ctx, current.SHA, target.SHA)
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return ErrDeclined
	}

	// Step 6: push the branch if the remote does not have it yet, then
	// stream the update routine over a single SSH session.
	exists, err := o.Repo.RemoteHasBranch(ctx, remoteName, target.Branch)
	if err != nil {
		return err
	}
	if exists {
		fmt.Fprintf(o.Out, "Branch %s already exists on %s, not pushing\n", target.Branch, remoteName)
	} else {
		fmt.Fprintf(o.Out, "Pushing %s to %s...\n", target.Branch, remoteName)
		if err := o.Repo.PushBranch(ctx, remoteName, target.Branch); err != nil {
			return err
		}
	}

	script, err := BuildRemoteScript(env, target)
	if err != nil {
		return err
	}

	sshTarget := sshexec.Target{Host: env.Host, User: env.User, Port: env.Port}
	fmt.Fprintf(o.Out, "Updating %s on %s...\n", env.Path, env.Host)
	output, err := o.SSH.RunScript(ctx, sshTarget, script)
	if err != nil {
		return &RemoteUpdateError{Host: env.Host, Output: string(output), Err: err}
	}
	if len(output) > 0 {
		fmt.Fprintln(o.Out, strings.TrimRight(string(output), "\n"))
	}

	// Step 7: trigger regeneration and verify through the generated
	// artifact files. The HTTP response itself says nothing useful.
	fmt.Fprintf(o.Out, "Triggering regeneration at %s/regen.php...\n", env.SiteURL)
	if err := o.Regen.TriggerRegen(ctx, env.SiteURL); err != nil {
		return err
	}
	var missing []string
	for _, artifact := range o.Artifacts {
		if !fileutil.FileExists(artifact) {
			missing = append(missing, artifact)
		}
	}
	if len(missing) > 0 {
		return &ArtifactsMissingError{Missing: missing}
	}

	fmt.Fprintf(o.Out, "%s now at %s\n", env.Name, target)

	// Step 8: staging pushes end with the manual verification checklist.
	if mode == ModeSet && env.Name == config.EnvStaging {
		o.printChecklist(env, target)
	}
	return nil
}

// Revert reads the environment's current and previous markers as two
// distinct fetches and pushes the previous revision back.
func (o *Orchestrator) Revert(ctx context.Context, env *config.Environment) error {
	resolver := &Resolver{Repo: o.Repo, Site: o.Markers}

	current, err := resolver.Remote(ctx, env)
	if err != nil {
		return fmt.Errorf("cannot revert %s: %w", env.Name, err)
	}
	prior, err := resolver.RemotePrior(ctx, env)
	if err != nil {
		return fmt.Errorf("cannot revert %s: PRIOR-REVISION marker is missing or invalid: %w", env.Name, err)
	}

	fmt.Fprintf(o.Out, "Reverting %s from %s to %s\n", env.Name, current, prior)
	return o.Push(ctx, ModeRevert, env, prior, current)
}

func (o *Orchestrator) printChecklist(env *config.Environment, rev revision.Revision) {
	fmt.Fprintln(o.Out)
	fmt.Fprintln(o.Out, "Staging push complete. Before pushing live, verify by hand:")
	fmt.Fprintf(o.Out, "  - browse %s and spot-check recently edited pages\n", env.SiteURL)
	fmt.Fprintln(o.Out, "  - confirm the history page and page index were regenerated")
	fmt.Fprintf(o.Out, "  - confirm %s/REVISION shows %s\n", env.SiteURL, rev)
	fmt.Fprintln(o.Out, "  - then run: livepush push live")
}

func (o *Orchestrator) record(ctx context.Context, mode Mode, env *config.Environment, newRev, currentRev revision.Revision, start time.Time, pushErr error) {
	if o.Journal == nil {
		return
	}

	duration := time.Since(start).Seconds()
	status := "success"
	var errMsg *string
	switch {
	case errors.Is(pushErr, ErrDeclined):
		status = "declined"
	case pushErr != nil:
		status = "failed"
		msg := pushErr.Error()
		errMsg = &msg
	}

	prev := currentRev.String()
	next := newRev.String()
	record := &history.Record{
		Environment:     env.Name,
		Action:          string(mode),
		Branch:          newRev.Branch,
		SHA:             newRev.SHA,
		PrevRevision:    &prev,
		NewRevision:     &next,
		Status:          status,
		DurationSeconds: &duration,
		ErrorMessage:    errMsg,
	}
	if _, err := o.Journal.RecordDeployment(ctx, record); err != nil {
		fmt.Fprintf(o.Out, "Warning: failed to journal deployment: %v\n", err)
	}
}
