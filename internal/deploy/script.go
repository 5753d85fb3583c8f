package deploy

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kballard/go-shellquote"

	"livepush/internal/config"
	"livepush/internal/revision"
	"livepush/internal/security"
)

// remoteScript is the self-contained update routine streamed to sh on the
// target host. It moves the document-root worktree to the requested
// revision, rolls itself back on a failed checkout or reset, and rewrites
// the two marker files only after every step succeeded.
const remoteScript = `#!/bin/sh
set -u

cd {{.Path}} || { echo "livepush-remote: cannot cd to {{.Path}}" >&2; exit 1; }

old_revision=""
[ -f REVISION ] && old_revision=$(cat REVISION)
current_branch=$(git rev-parse --abbrev-ref HEAD 2>/dev/null) || current_branch=""
{{if .ToggleOwnership}}
release_ownership() {
{{- range .ProtectedDirs}}
	[ -d {{.}} ] && chown -R {{$.WebUser}}:{{$.WebUser}} {{.}}
{{- end}}
	return 0
}

grab_ownership() {
{{- range .ProtectedDirs}}
	[ -d {{.}} ] && chown -R {{$.MaintenanceUser}}:{{$.MaintenanceUser}} {{.}}
{{- end}}
	return 0
}

# The serving account must get the content subtrees back on every exit path.
trap release_ownership EXIT
grab_ownership
{{end}}
die() {
	echo "livepush-remote: $*" >&2
	exit 1
}

rollback() {
	# Restore the previously checked-out branch with a hard reset only;
	# the markers and other untracked files stay untouched.
	[ -n "$current_branch" ] || return 0
	git checkout -f "$current_branch" >/dev/null 2>&1
	git reset --hard "refs/heads/$current_branch" >/dev/null 2>&1
	return 0
}

# Same-vs-different branch is decided by what is actually checked out, not
# by the marker: the marker can be absent or stale after a failed update.
if [ "$current_branch" = "{{.Branch}}" ]; then
	git pull origin "{{.Branch}}" || die "pull of {{.Branch}} failed"
else
	git fetch --force origin "{{.Branch}}" || die "fetch of {{.Branch}} failed"
	if ! git checkout -f -B "{{.Branch}}" FETCH_HEAD; then
		rollback
		die "checkout of {{.Branch}} failed; restored $current_branch"
	fi
fi

head=$(git rev-parse HEAD) || die "cannot read HEAD"
if [ "$head" != "{{.SHA}}" ]; then
	if ! git reset --hard "{{.SHA}}"; then
		rollback
		die "reset to {{.SHA}} failed; restored $current_branch"
	fi
fi

git clean -fd -e REVISION -e REVISION.tmp -e PRIOR-REVISION -e PRIOR-REVISION.tmp || die "clean of untracked files failed"

# PRIOR-REVISION first so it always names the last genuinely-applied state,
# each file written whole via rename.
printf '%s\n' "$old_revision" > PRIOR-REVISION.tmp || die "cannot write PRIOR-REVISION"
mv PRIOR-REVISION.tmp PRIOR-REVISION || die "cannot replace PRIOR-REVISION"
printf '%s\n' "{{.Revision}}" > REVISION.tmp || die "cannot write REVISION"
mv REVISION.tmp REVISION || die "cannot replace REVISION"

echo "livepush-remote: updated to {{.Revision}}"
`

var remoteTemplate = template.Must(template.New("remote-update").Parse(remoteScript))

// scriptData carries only pre-validated or pre-quoted values; the template
// itself does no escaping.
type scriptData struct {
	Path            string
	Branch          string
	SHA             string
	Revision        string
	WebUser         string
	MaintenanceUser string
	ProtectedDirs   []string
	ToggleOwnership bool
}

// BuildRemoteScript renders the update routine for one environment and
// revision. Branch and SHA are validated against strict character sets and
// everything else is shell-quoted, so hostile configuration cannot smuggle
// commands onto the target host.
func BuildRemoteScript(env *config.Environment, rev revision.Revision) (string, error) {
	if err := security.ValidateBranchName(rev.Branch); err != nil {
		return "", fmt.Errorf("refusing to build remote script: %w", err)
	}
	if err := security.ValidateCommitSHA(rev.SHA); err != nil {
		return "", fmt.Errorf("refusing to build remote script: %w", err)
	}
	path, err := security.SanitizePath(env.Path)
	if err != nil {
		return "", fmt.Errorf("refusing to build remote script: %w", err)
	}

	quotedDirs := make([]string, len(env.ProtectedDirs))
	for i, dir := range env.ProtectedDirs {
		quotedDirs[i] = shellquote.Join(dir)
	}

	data := scriptData{
		Path:            shellquote.Join(path),
		Branch:          rev.Branch,
		SHA:             rev.SHA,
		Revision:        rev.String(),
		WebUser:         shellquote.Join(env.WebUser),
		MaintenanceUser: shellquote.Join(env.MaintenanceUser),
		ProtectedDirs:   quotedDirs,
		ToggleOwnership: env.MaintenanceUser != "",
	}

	var buf bytes.Buffer
	if err := remoteTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render remote script: %w", err)
	}
	return buf.String(), nil
}
