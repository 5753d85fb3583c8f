package deploy

import (
	"context"
	"fmt"

	"livepush/internal/config"
	"livepush/internal/gitrepo"
	"livepush/internal/revision"
	"livepush/internal/site"
)

// MarkerFetcher reads revision markers from a deployed site. Satisfied by
// site.Client; faked in tests.
type MarkerFetcher interface {
	FetchMarker(ctx context.Context, siteURL, marker string) (revision.Revision, error)
}

// Resolver produces revision identifiers for the local repository and for
// remote environments.
type Resolver struct {
	Repo *gitrepo.Repo
	Site MarkerFetcher
}

// Local resolves a branch name to a full revision using the local
// repository. An empty branch name means "the newest live-* snapshot".
func (r *Resolver) Local(branch string) (revision.Revision, error) {
	if branch == "" {
		branches, err := r.Repo.LocalBranches()
		if err != nil {
			return revision.Revision{}, err
		}
		newest, ok := revision.NewestSnapshot(branches)
		if !ok {
			return revision.Revision{}, fmt.Errorf("no local live-* snapshot branches found; run 'livepush build' first")
		}
		branch = newest
	}

	sha, err := r.Repo.BranchSHA(branch)
	if err != nil {
		return revision.Revision{}, err
	}
	return revision.Revision{Branch: branch, SHA: sha}, nil
}

// Remote reads the currently applied revision from an environment's
// REVISION marker. Malformed marker content aborts the workflow; it is
// never silently substituted.
func (r *Resolver) Remote(ctx context.Context, env *config.Environment) (revision.Revision, error) {
	return r.Site.FetchMarker(ctx, env.SiteURL, site.MarkerRevision)
}

// RemotePrior reads the revision that was applied before the last update.
func (r *Resolver) RemotePrior(ctx context.Context, env *config.Environment) (revision.Revision, error) {
	return r.Site.FetchMarker(ctx, env.SiteURL, site.MarkerPriorRevision)
}
