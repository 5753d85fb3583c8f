package sshexec

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write ssh config: %v", err)
	}
	return path
}

const testSSHConfig = `
Host staging-site
    Hostname staging.internal.example.org
    User deploy
    Port 2222
    IdentityFile ~/.ssh/staging.key

Host *.example.org
    User webops
`

func TestResolveTarget_ConfigAlias(t *testing.T) {
	client := NewClientWithPaths(writeSSHConfig(t, testSSHConfig), "")

	res, err := client.resolveTarget(Target{Host: "staging-site"})
	if err != nil {
		t.Fatalf("Failed to resolve target: %v", err)
	}

	if res.Addr != "staging.internal.example.org:2222" {
		t.Errorf("Addr = %q, expected 'staging.internal.example.org:2222'", res.Addr)
	}
	if res.User != "deploy" {
		t.Errorf("User = %q, expected 'deploy'", res.User)
	}
	if len(res.IdentityFiles) != 1 {
		t.Fatalf("Expected 1 identity file, got %d", len(res.IdentityFiles))
	}
	if filepath.Base(res.IdentityFiles[0]) != "staging.key" {
		t.Errorf("IdentityFile = %q, expected staging.key", res.IdentityFiles[0])
	}
}

func TestResolveTarget_ExplicitValuesWin(t *testing.T) {
	client := NewClientWithPaths(writeSSHConfig(t, testSSHConfig), "")

	res, err := client.resolveTarget(Target{Host: "staging-site", User: "root", Port: 22})
	if err != nil {
		t.Fatalf("Failed to resolve target: %v", err)
	}

	if res.User != "root" {
		t.Errorf("User = %q, expected explicit 'root' to win over config", res.User)
	}
	if res.Addr != "staging.internal.example.org:22" {
		t.Errorf("Addr = %q, expected explicit port 22 to win", res.Addr)
	}
}

func TestResolveTarget_WildcardUser(t *testing.T) {
	client := NewClientWithPaths(writeSSHConfig(t, testSSHConfig), "")

	res, err := client.resolveTarget(Target{Host: "www.example.org", Port: 22})
	if err != nil {
		t.Fatalf("Failed to resolve target: %v", err)
	}

	if res.User != "webops" {
		t.Errorf("User = %q, expected wildcard match 'webops'", res.User)
	}
	if res.Addr != "www.example.org:22" {
		t.Errorf("Addr = %q, expected 'www.example.org:22'", res.Addr)
	}
}

func TestResolveTarget_NoConfigFile(t *testing.T) {
	client := NewClientWithPaths(filepath.Join(t.TempDir(), "missing"), "")

	res, err := client.resolveTarget(Target{Host: "www.example.org", User: "deploy"})
	if err != nil {
		t.Fatalf("Failed to resolve target without config file: %v", err)
	}

	if res.Addr != "www.example.org:22" {
		t.Errorf("Addr = %q, expected default port 22", res.Addr)
	}
	if len(res.IdentityFiles) == 0 {
		t.Error("Expected default identity file candidates")
	}
}

func TestResolveTarget_EmptyHost(t *testing.T) {
	client := NewClientWithPaths("", "")
	if _, err := client.resolveTarget(Target{}); err == nil {
		t.Error("Expected error for empty host")
	}
}

func TestAuthMethods_NoneAvailable(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	_, err := authMethods([]string{filepath.Join(t.TempDir(), "missing.key")})
	if err == nil {
		t.Error("Expected error when no agent and no identity files are usable")
	}
}

func TestAuthMethods_RejectsLooseKeyPermissions(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	key := filepath.Join(t.TempDir(), "id_rsa")
	if err := os.WriteFile(key, []byte("not really a key"), 0644); err != nil {
		t.Fatalf("Failed to write key: %v", err)
	}

	_, err := authMethods([]string{key})
	if err == nil {
		t.Error("Expected world-readable key file to be rejected")
	}
}
