package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Safe patterns for values that end up inside the streamed remote routine
	branchPattern = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
	shaPattern    = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)
)

// ValidateBranchName ensures a branch name is safe for git operations and
// for interpolation into the remote update routine.
// Prevents command injection through branch names.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters")
	}
	return nil
}

// ValidateCommitSHA ensures a commit hash looks like a hex object name before
// it is handed to git on the remote host.
func ValidateCommitSHA(sha string) error {
	if sha == "" {
		return fmt.Errorf("commit SHA cannot be empty")
	}
	if !shaPattern.MatchString(sha) {
		return fmt.Errorf("commit SHA contains invalid characters")
	}
	return nil
}

// SanitizePath ensures a remote document-root path is absolute and doesn't
// contain traversal attempts.
func SanitizePath(path string) (string, error) {
	// Must be absolute
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}

	// Check for .. before cleaning (filepath.Clean removes them)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains traversal elements: %s", path)
	}

	// Clean the path to remove ./ elements
	cleaned := filepath.Clean(path)

	return cleaned, nil
}
