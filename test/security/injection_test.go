package security

import (
	"strings"
	"testing"

	"livepush/internal/config"
	"livepush/internal/deploy"
	"livepush/internal/revision"
	"livepush/internal/security"
)

// TestBranchInjectionPrevention validates that hostile branch names never
// reach the remote update routine.
func TestBranchInjectionPrevention(t *testing.T) {
	tests := []struct {
		name      string
		branch    string
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid snapshot branch",
			branch:    "live-20230115",
			wantError: false,
		},
		{
			name:      "valid versioned snapshot branch",
			branch:    "live-20230115.2",
			wantError: false,
		},
		{
			name:      "injection with semicolon",
			branch:    "live-20230115; rm -rf /",
			wantError: true,
			errorMsg:  "invalid characters",
		},
		{
			name:      "injection with pipe",
			branch:    "live-20230115 | cat /etc/passwd",
			wantError: true,
			errorMsg:  "invalid characters",
		},
		{
			name:      "injection with backticks",
			branch:    "live-20230115`whoami`",
			wantError: true,
			errorMsg:  "invalid characters",
		},
		{
			name:      "injection with command substitution",
			branch:    "live-$(id)",
			wantError: true,
			errorMsg:  "invalid characters",
		},
		{
			name:      "injection with newline",
			branch:    "live-20230115\nreboot",
			wantError: true,
			errorMsg:  "invalid characters",
		},
		{
			name:      "option smuggling with leading dash",
			branch:    "--upload-pack=reboot",
			wantError: true,
			errorMsg:  "cannot start with '-'",
		},
		{
			name:      "empty branch",
			branch:    "",
			wantError: true,
			errorMsg:  "cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := security.ValidateBranchName(tt.branch)
			if tt.wantError {
				if err == nil {
					t.Fatalf("Expected error for branch %q", tt.branch)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Error %q does not mention %q", err, tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected branch %q to validate, got: %v", tt.branch, err)
			}
		})
	}
}

// TestSHAInjectionPrevention validates the commit hash gate.
func TestSHAInjectionPrevention(t *testing.T) {
	tests := []struct {
		name      string
		sha       string
		wantError bool
	}{
		{name: "full sha", sha: "bbb222bbb222bbb222bbb222bbb222bbb222bbb2", wantError: false},
		{name: "abbreviated sha", sha: "bbb222b", wantError: false},
		{name: "command substitution", sha: "$(reboot)", wantError: true},
		{name: "shell metacharacters", sha: "abc123; ls", wantError: true},
		{name: "too short", sha: "ab", wantError: true},
		{name: "non-hex", sha: "zzzz1234", wantError: true},
		{name: "empty", sha: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := security.ValidateCommitSHA(tt.sha)
			if tt.wantError && err == nil {
				t.Errorf("Expected SHA %q to be rejected", tt.sha)
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected SHA %q to validate, got: %v", tt.sha, err)
			}
		})
	}
}

// TestPathTraversalPrevention validates the remote document-root gate.
func TestPathTraversalPrevention(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{name: "absolute path", path: "/var/www/site", wantError: false},
		{name: "relative path", path: "var/www/site", wantError: true},
		{name: "traversal", path: "/var/www/../../etc", wantError: true},
		{name: "hidden traversal", path: "/var/www/site/..", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := security.SanitizePath(tt.path)
			if tt.wantError && err == nil {
				t.Errorf("Expected path %q to be rejected", tt.path)
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected path %q to validate, got: %v", tt.path, err)
			}
		})
	}
}

// TestRemoteScriptRejectsHostileInput exercises the full script assembly:
// anything the validators miss must still never be interpolated unquoted.
func TestRemoteScriptRejectsHostileInput(t *testing.T) {
	env := &config.Environment{
		Name:          "staging",
		Host:          "staging.example.org",
		Path:          "/var/www/staging",
		SiteURL:       "https://staging.example.org",
		WebUser:       "www-data",
		ProtectedDirs: []string{"data", "uploads"},
	}

	hostileRevisions := []revision.Revision{
		{Branch: "live-20230115; reboot", SHA: "bbb222bb"},
		{Branch: "live-20230115", SHA: "`reboot`"},
		{Branch: "live-20230115\ncurl evil.example", SHA: "bbb222bb"},
	}
	for _, rev := range hostileRevisions {
		if _, err := deploy.BuildRemoteScript(env, rev); err == nil {
			t.Errorf("Expected BuildRemoteScript to reject %v", rev)
		}
	}
}

// TestRemoteScriptQuotesConfiguredValues checks that operator-controlled
// config values pass through shell quoting, not raw interpolation.
func TestRemoteScriptQuotesConfiguredValues(t *testing.T) {
	env := &config.Environment{
		Name:            "staging",
		Host:            "staging.example.org",
		Path:            "/var/www/my site",
		SiteURL:         "https://staging.example.org",
		WebUser:         "www-data",
		MaintenanceUser: "site admin",
		ProtectedDirs:   []string{"my uploads"},
	}
	rev := revision.Revision{Branch: "live-20230115", SHA: "bbb222bbb222bbb222bbb222bbb222bbb222bbb2"}

	script, err := deploy.BuildRemoteScript(env, rev)
	if err != nil {
		t.Fatalf("Failed to build script: %v", err)
	}
	for _, want := range []string{"'/var/www/my site'", "'site admin'", "'my uploads'"} {
		if !strings.Contains(script, want) {
			t.Errorf("Expected %s to be quoted in the script", want)
		}
	}
}
