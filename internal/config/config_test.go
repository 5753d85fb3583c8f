package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

const validConfig = `
source_branch: master
generator:
  - ./generate.sh
  - [./cleanup.sh, --all]
artifacts:
  - html/history.html
  - html/pages.html
environments:
  staging:
    host: staging.example.org
    path: /var/www/staging
    site_url: https://staging.example.org
  live:
    host: www.example.org
    user: deploy
    port: 2222
    path: /var/www/site
    site_url: https://www.example.org/
    web_user: apache
    maintenance_user: siteadmin
    protected_dirs: [pages, uploads]
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Expected valid config to load, got: %v", err)
	}

	if cfg.SourceBranch != "master" {
		t.Errorf("SourceBranch = %q, expected 'master'", cfg.SourceBranch)
	}
	if cfg.GeneratorTimeout != DefaultGeneratorTimeout {
		t.Errorf("GeneratorTimeout = %d, expected default %d", cfg.GeneratorTimeout, DefaultGeneratorTimeout)
	}
	if len(cfg.Generator) != 2 {
		t.Fatalf("Expected 2 generator commands, got %d", len(cfg.Generator))
	}
	if cfg.Generator[0][0] != "./generate.sh" {
		t.Errorf("Generator[0] = %v", cfg.Generator[0])
	}
	if len(cfg.Generator[1]) != 2 || cfg.Generator[1][1] != "--all" {
		t.Errorf("Generator[1] = %v, expected list form preserved", cfg.Generator[1])
	}

	staging, err := cfg.Environment(EnvStaging)
	if err != nil {
		t.Fatalf("Environment(staging) failed: %v", err)
	}
	if staging.Port != DefaultPort {
		t.Errorf("staging port = %d, expected default %d", staging.Port, DefaultPort)
	}
	if staging.WebUser != DefaultWebUser {
		t.Errorf("staging web_user = %q, expected default %q", staging.WebUser, DefaultWebUser)
	}
	if len(staging.ProtectedDirs) != 2 {
		t.Errorf("staging protected_dirs = %v, expected defaults", staging.ProtectedDirs)
	}

	live, err := cfg.Environment(EnvLive)
	if err != nil {
		t.Fatalf("Environment(live) failed: %v", err)
	}
	if live.Port != 2222 {
		t.Errorf("live port = %d, expected 2222", live.Port)
	}
	if live.User != "deploy" {
		t.Errorf("live user = %q, expected 'deploy'", live.User)
	}
	if live.SiteURL != "https://www.example.org" {
		t.Errorf("live site_url = %q, expected trailing slash trimmed", live.SiteURL)
	}
	if live.ProtectedDirs[0] != "pages" {
		t.Errorf("live protected_dirs = %v", live.ProtectedDirs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoad_MissingEnvironments(t *testing.T) {
	_, err := Load(writeConfig(t, `
artifacts: [a.html, b.html]
`))
	if err == nil {
		t.Fatal("Expected missing environments to be rejected")
	}
	if !strings.Contains(err.Error(), "missing required 'environments'") {
		t.Errorf("Expected environments error, got: %v", err)
	}
}

func TestLoad_MissingLiveEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, `
artifacts: [a.html, b.html]
environments:
  staging:
    host: staging.example.org
    path: /var/www/staging
    site_url: https://staging.example.org
`))
	if err == nil {
		t.Fatal("Expected missing live environment to be rejected")
	}
	if !strings.Contains(err.Error(), "missing required environment 'live'") {
		t.Errorf("Expected missing live error, got: %v", err)
	}
}

func TestLoad_UnknownEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, `
artifacts: [a.html, b.html]
environments:
  staging:
    host: staging.example.org
    path: /var/www/staging
    site_url: https://staging.example.org
  live:
    host: www.example.org
    path: /var/www/site
    site_url: https://www.example.org
  preview:
    host: preview.example.org
    path: /var/www/preview
    site_url: https://preview.example.org
`))
	if err == nil {
		t.Fatal("Expected unknown environment to be rejected")
	}
	if !strings.Contains(err.Error(), "unknown environment 'preview'") {
		t.Errorf("Expected unknown environment error, got: %v", err)
	}
}

func TestLoad_InvalidEnvironmentFields(t *testing.T) {
	_, err := Load(writeConfig(t, `
artifacts: [a.html, b.html]
environments:
  staging:
    host: staging.example.org
    path: relative/path
    site_url: ftp://staging.example.org
  live:
    host: ""
    port: 99999
    path: /var/www/site
    site_url: https://www.example.org
    protected_dirs: [/etc, ../escape]
`))
	if err == nil {
		t.Fatal("Expected invalid environment fields to be rejected")
	}

	// All problems must surface in one pass.
	for _, want := range []string{
		"path must be absolute",
		"site_url must be an http(s) URL",
		"missing required 'host'",
		"port out of range",
		"protected_dirs[0] must be relative",
		"protected_dirs[1] must be relative",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error containing %q, got: %v", want, err)
		}
	}
}

func TestLoad_ArtifactCount(t *testing.T) {
	_, err := Load(writeConfig(t, `
artifacts: [only-one.html]
environments:
  staging:
    host: staging.example.org
    path: /var/www/staging
    site_url: https://staging.example.org
  live:
    host: www.example.org
    path: /var/www/site
    site_url: https://www.example.org
`))
	if err == nil {
		t.Fatal("Expected single artifact to be rejected")
	}
	if !strings.Contains(err.Error(), "exactly 2 generated files") {
		t.Errorf("Expected artifact count error, got: %v", err)
	}
}

func TestLoad_GeneratorForms(t *testing.T) {
	testCases := []struct {
		name      string
		generator string
		wantErr   string
	}{
		{"unbalanced quote", `generator: ["./generate.sh 'oops"]`, "cannot parse command"},
		{"non-string entry", `generator: [123]`, "must be a string or list"},
		{"non-string list element", `generator: [[./generate.sh, 2]]`, "list entries must be strings"},
		{"empty string", `generator: [""]`, "empty command"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, `
`+tc.generator+`
artifacts: [a.html, b.html]
environments:
  staging:
    host: staging.example.org
    path: /var/www/staging
    site_url: https://staging.example.org
  live:
    host: www.example.org
    path: /var/www/site
    site_url: https://www.example.org
`))
			if err == nil {
				t.Fatalf("Expected generator form %s to be rejected", tc.name)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfig_UnknownEnvironmentAccessor(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := cfg.Environment("production"); err == nil {
		t.Error("Expected error for unknown environment name")
	}
}
