// Package revision parses and orders the snapshot identifiers used by the
// deployment workflow: branch names of the form live-YYYYMMDD[.VER] and
// revision strings of the form branch:SHA.
package revision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	revisionPattern = regexp.MustCompile(`^live-.*:.*$`)
	snapshotPattern = regexp.MustCompile(`^live-(\d{8})(?:\.(\d+))?$`)
)

// ExpectedFormat is printed alongside every malformed-revision diagnostic.
const ExpectedFormat = "live-YYYYMMDD[.VER]:SHA"

// Revision identifies exactly one deployed snapshot: the branch it was built
// on and the commit it points at.
type Revision struct {
	Branch string
	SHA    string
}

// InvalidError reports a string that does not serialize a deployable revision.
type InvalidError struct {
	Value string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid revision %q: expected format %s", e.Value, ExpectedFormat)
}

// Parse splits a serialized revision string at the first colon. Anything that
// does not match ^live-.*:.*$ is rejected.
func Parse(s string) (Revision, error) {
	if !revisionPattern.MatchString(s) {
		return Revision{}, &InvalidError{Value: s}
	}
	branch, sha, _ := strings.Cut(s, ":")
	return Revision{Branch: branch, SHA: sha}, nil
}

func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (r Revision) String() string {
	return r.Branch + ":" + r.SHA
}

// ShortSHA returns the abbreviated commit hash used in console summaries.
func (r Revision) ShortSHA() string {
	if len(r.SHA) > 7 {
		return r.SHA[:7]
	}
	return r.SHA
}

// IsLiveBranch reports whether a branch name marks a deployable snapshot.
// Note that test-live-* names do not count: they never begin with "live-".
func IsLiveBranch(name string) bool {
	return strings.HasPrefix(name, "live-")
}

// IsTestBranch reports whether a branch name marks a staging-only test
// snapshot.
func IsTestBranch(name string) bool {
	return strings.HasPrefix(name, "test-live-")
}

// Snapshot is the parsed form of a dated snapshot branch name. Ver is zero
// for the bare live-YYYYMMDD form and N for live-YYYYMMDD.N.
type Snapshot struct {
	Date string
	Ver  int
}

// ParseSnapshot reports whether a branch name is a dated snapshot and, if so,
// its date and version. Names that merely start with "live-" but carry no
// eight-digit date are not snapshots.
func ParseSnapshot(branch string) (Snapshot, bool) {
	matches := snapshotPattern.FindStringSubmatch(branch)
	if matches == nil {
		return Snapshot{}, false
	}
	ver := 0
	if matches[2] != "" {
		ver, _ = strconv.Atoi(matches[2])
	}
	return Snapshot{Date: matches[1], Ver: ver}, true
}

func (s Snapshot) BranchName() string {
	if s.Ver == 0 {
		return fmt.Sprintf("live-%s", s.Date)
	}
	return fmt.Sprintf("live-%s.%d", s.Date, s.Ver)
}

func compareSnapshots(a, b Snapshot) int {
	if a.Date != b.Date {
		return strings.Compare(a.Date, b.Date)
	}
	return a.Ver - b.Ver
}

// NewestSnapshot picks the most recent dated snapshot from a list of branch
// names, ordered by date and then version. Non-snapshot names are ignored.
func NewestSnapshot(branches []string) (string, bool) {
	var newest Snapshot
	found := false
	for _, b := range branches {
		s, ok := ParseSnapshot(b)
		if !ok {
			continue
		}
		if !found || compareSnapshots(s, newest) > 0 {
			newest = s
			found = true
		}
	}
	if !found {
		return "", false
	}
	return newest.BranchName(), true
}

// NextSnapshotName returns the first unused snapshot name for the given day:
// the bare live-YYYYMMDD if no snapshot exists for that date yet, otherwise
// the next free .VER suffix.
func NextSnapshotName(now time.Time, branches []string) string {
	date := now.Format("20060102")
	maxVer := -1
	for _, b := range branches {
		s, ok := ParseSnapshot(b)
		if !ok || s.Date != date {
			continue
		}
		if s.Ver > maxVer {
			maxVer = s.Ver
		}
	}
	return Snapshot{Date: date, Ver: maxVer + 1}.BranchName()
}
