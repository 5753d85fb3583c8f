// Package gitrepo wraps the local working repository: branch lookups for the
// revision resolver, pushes for the deploy workflow and worktree operations
// for the snapshot builder.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Commits created by the snapshot builder carry a fixed identity so builds
// are reproducible across operator machines.
const (
	commitAuthorName  = "livepush"
	commitAuthorEmail = "livepush@localhost"
)

// BranchNotFoundError reports a branch that does not exist in the local
// repository.
type BranchNotFoundError struct {
	Branch string
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch '%s' not found in local repository", e.Branch)
}

// ShaNotFoundError reports a branch whose tip commit cannot be loaded.
type ShaNotFoundError struct {
	Branch string
	SHA    string
}

func (e *ShaNotFoundError) Error() string {
	return fmt.Sprintf("commit %s for branch '%s' not found in local repository", e.SHA, e.Branch)
}

// Repo is an open local git repository.
type Repo struct {
	path string
	repo *git.Repository
}

// Open finds the repository containing path, walking up to the enclosing
// .git directory the way the git CLI does.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s: %w", path, err)
	}
	return &Repo{path: path, repo: repo}, nil
}

func (r *Repo) Path() string {
	return r.path
}

// CurrentBranch returns the short name of the checked-out branch.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s, not on a branch", head.Hash().String()[:7])
	}
	return head.Name().Short(), nil
}

// BranchSHA resolves a local branch name to its tip commit hash.
func (r *Repo) BranchSHA(branch string) (string, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", &BranchNotFoundError{Branch: branch}
		}
		return "", fmt.Errorf("failed to resolve branch '%s': %w", branch, err)
	}

	sha := ref.Hash().String()
	if _, err := r.repo.CommitObject(ref.Hash()); err != nil {
		return "", &ShaNotFoundError{Branch: branch, SHA: sha}
	}
	return sha, nil
}

// LocalBranches lists the short names of all local branches.
func (r *Repo) LocalBranches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	var branches []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, nil
}

// IsClean reports whether the worktree has no uncommitted changes.
func (r *Repo) IsClean() (bool, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read worktree status: %w", err)
	}
	return status.IsClean(), nil
}

// PushURL returns the URL of the named remote.
func (r *Repo) PushURL(remoteName string) (string, error) {
	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		return "", fmt.Errorf("remote '%s' is not configured: %w", remoteName, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote '%s' has no URL configured", remoteName)
	}
	return urls[0], nil
}

// RemoteHasBranch asks the remote whether the branch already exists there.
func (r *Repo) RemoteHasBranch(ctx context.Context, remoteName, branch string) (bool, error) {
	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		return false, fmt.Errorf("remote '%s' is not configured: %w", remoteName, err)
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return false, nil
		}
		return false, fmt.Errorf("failed to list refs on remote '%s': %w", remoteName, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return true, nil
		}
	}
	return false, nil
}

// PushBranch pushes a local branch to the named remote under the same name.
func (r *Repo) PushBranch(ctx context.Context, remoteName, branch string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)),
		},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to push branch '%s' to '%s': %w", branch, remoteName, err)
	}
	return nil
}

// CreateAndCheckout creates a new branch at the current HEAD and switches
// the worktree to it.
func (r *Repo) CreateAndCheckout(branch string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create branch '%s': %w", branch, err)
	}
	return nil
}

// Checkout switches the worktree to an existing branch, discarding local
// changes.
func (r *Repo) Checkout(branch string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Force:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to checkout branch '%s': %w", branch, err)
	}
	return nil
}

// CommitAll stages every change in the worktree and commits it, returning
// the new commit hash. An unchanged worktree is an error: a snapshot that
// generated nothing is not worth keeping.
func (r *Repo) CommitAll(message string) (string, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}

	commit, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthorName,
			Email: commitAuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return commit.String(), nil
}

// DeleteBranch removes a local branch reference. Used to abandon a snapshot
// branch after a failed build.
func (r *Repo) DeleteBranch(branch string) error {
	err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return fmt.Errorf("failed to delete branch '%s': %w", branch, err)
	}
	return nil
}
