package deploy

import (
	"errors"
	"fmt"

	"livepush/internal/revision"
)

// ErrDeclined is returned when the operator answers the confirmation prompt
// with no. Nothing has been pushed or mutated when this is returned.
var ErrDeclined = errors.New("push declined by operator")

// LiveBranchError reports an attempt to push a branch to the live
// environment that is not a live-* snapshot.
type LiveBranchError struct {
	Branch string
}

func (e *LiveBranchError) Error() string {
	msg := fmt.Sprintf("branch '%s' cannot be pushed to the live environment: live pushes require a branch name starting with 'live-'", e.Branch)
	if revision.IsTestBranch(e.Branch) {
		// test-live-* is the common mistake; point at the fix.
		msg += "\nBuild a live-* snapshot with 'livepush build' and push that instead"
	}
	return msg
}

// RemoteUpdateError wraps a failure of the streamed update routine together
// with everything it printed on the target host.
type RemoteUpdateError struct {
	Host   string
	Output string
	Err    error
}

func (e *RemoteUpdateError) Error() string {
	return fmt.Sprintf("remote update on %s failed: %v\nremote output:\n%s", e.Host, e.Err, e.Output)
}

func (e *RemoteUpdateError) Unwrap() error {
	return e.Err
}

// ArtifactsMissingError reports generated files that did not appear after
// the regeneration trigger.
type ArtifactsMissingError struct {
	Missing []string
}

func (e *ArtifactsMissingError) Error() string {
	return fmt.Sprintf("regeneration did not produce expected artifacts: %v", e.Missing)
}
