package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"livepush/pkg/fileutil"
)

const (
	FileName = "livepush.yaml"

	DefaultSourceBranch     = "master"
	DefaultGeneratorTimeout = 600
	DefaultWebUser          = "www-data"
	DefaultPort             = 22
)

// The content subtrees the web server writes into and the updater must be
// able to rewrite.
var defaultProtectedDirs = []string{"data", "uploads"}

var (
	hostPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*$`)
	userPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)
)

// Find locates the configuration file in the standard search locations.
func Find() (string, error) {
	return fileutil.FindConfig(FileName)
}

// Load reads and validates the configuration from a YAML file. Validation
// accumulates every problem before failing so a broken file is fixed in one
// pass.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	generator, errs := parseGenerator(raw.Generator)
	errs = append(errs, validateConfig(raw)...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration in %s:\n%s", path, strings.Join(errs, "\n"))
	}

	cfg := &Config{
		SourceBranch:     raw.SourceBranch,
		Generator:        generator,
		GeneratorTimeout: raw.GeneratorTimeout,
		Artifacts:        raw.Artifacts,
		Environments:     make(map[string]*Environment),
	}
	if cfg.SourceBranch == "" {
		cfg.SourceBranch = DefaultSourceBranch
	}
	if cfg.GeneratorTimeout == 0 {
		cfg.GeneratorTimeout = DefaultGeneratorTimeout
	}

	for name, ec := range raw.Environments {
		env := &Environment{
			Name:            name,
			Host:            ec.Host,
			User:            ec.User,
			Port:            ec.Port,
			Path:            filepath.Clean(ec.Path),
			SiteURL:         strings.TrimRight(ec.SiteURL, "/"),
			WebUser:         ec.WebUser,
			MaintenanceUser: ec.MaintenanceUser,
			ProtectedDirs:   ec.ProtectedDirs,
		}
		if env.Port == 0 {
			env.Port = DefaultPort
		}
		if env.WebUser == "" {
			env.WebUser = DefaultWebUser
		}
		if env.ProtectedDirs == nil {
			env.ProtectedDirs = defaultProtectedDirs
		}
		cfg.Environments[name] = env
	}

	return cfg, nil
}

// parseGenerator turns the string-or-list generator entries into argv lists.
// String entries go through shellquote so quoting mistakes surface at load
// time rather than at build time.
func parseGenerator(entries []interface{}) ([][]string, []string) {
	var cmds [][]string
	var errs []string

	for i, entry := range entries {
		switch cmd := entry.(type) {
		case string:
			argv, err := shellquote.Split(cmd)
			if err != nil {
				errs = append(errs, fmt.Sprintf("  - generator[%d]: cannot parse command: %v", i, err))
				continue
			}
			if len(argv) == 0 {
				errs = append(errs, fmt.Sprintf("  - generator[%d]: empty command", i))
				continue
			}
			cmds = append(cmds, argv)
		case []interface{}:
			var argv []string
			ok := true
			for _, elem := range cmd {
				s, isString := elem.(string)
				if !isString {
					errs = append(errs, fmt.Sprintf("  - generator[%d]: list entries must be strings, got %T", i, elem))
					ok = false
					break
				}
				argv = append(argv, s)
			}
			if !ok {
				continue
			}
			if len(argv) == 0 {
				errs = append(errs, fmt.Sprintf("  - generator[%d]: empty command", i))
				continue
			}
			cmds = append(cmds, argv)
		default:
			errs = append(errs, fmt.Sprintf("  - generator[%d]: must be a string or list, got %T", i, entry))
		}
	}

	return cmds, errs
}

func validateConfig(raw fileConfig) []string {
	var errs []string

	if strings.HasPrefix(raw.SourceBranch, "-") {
		errs = append(errs, fmt.Sprintf("  - source_branch cannot start with '-', got '%s'", raw.SourceBranch))
	}
	if raw.GeneratorTimeout < 0 {
		errs = append(errs, fmt.Sprintf("  - generator_timeout must be a positive integer, got %d", raw.GeneratorTimeout))
	}

	if len(raw.Artifacts) != 2 {
		errs = append(errs, fmt.Sprintf("  - 'artifacts' must list exactly 2 generated files to verify, got %d", len(raw.Artifacts)))
	}
	for i, artifact := range raw.Artifacts {
		if artifact == "" {
			errs = append(errs, fmt.Sprintf("  - artifacts[%d]: path cannot be empty", i))
		}
	}

	if raw.Environments == nil {
		errs = append(errs, "  - missing required 'environments' section")
		return errs
	}
	for _, name := range []string{EnvStaging, EnvLive} {
		if _, ok := raw.Environments[name]; !ok {
			errs = append(errs, fmt.Sprintf("  - missing required environment '%s'", name))
		}
	}
	for name, ec := range raw.Environments {
		if name != EnvStaging && name != EnvLive {
			errs = append(errs, fmt.Sprintf("  - unknown environment '%s' (only '%s' and '%s' are supported)", name, EnvStaging, EnvLive))
			continue
		}
		errs = append(errs, validateEnvironment(name, ec)...)
	}

	return errs
}

func validateEnvironment(name string, ec environmentConfig) []string {
	var errs []string

	if ec.Host == "" {
		errs = append(errs, fmt.Sprintf("  - environment '%s': missing required 'host' field", name))
	} else if !hostPattern.MatchString(ec.Host) {
		errs = append(errs, fmt.Sprintf("  - environment '%s': host contains invalid characters: '%s'", name, ec.Host))
	}

	for field, user := range map[string]string{"user": ec.User, "web_user": ec.WebUser, "maintenance_user": ec.MaintenanceUser} {
		if user != "" && !userPattern.MatchString(user) {
			errs = append(errs, fmt.Sprintf("  - environment '%s': %s contains invalid characters: '%s'", name, field, user))
		}
	}

	if ec.Port < 0 || ec.Port > 65535 {
		errs = append(errs, fmt.Sprintf("  - environment '%s': port out of range: %d", name, ec.Port))
	}

	if ec.Path == "" {
		errs = append(errs, fmt.Sprintf("  - environment '%s': missing required 'path' field", name))
	} else {
		if !filepath.IsAbs(ec.Path) {
			errs = append(errs, fmt.Sprintf("  - environment '%s': path must be absolute, got '%s'", name, ec.Path))
		}
		if strings.Contains(ec.Path, "..") {
			errs = append(errs, fmt.Sprintf("  - environment '%s': path contains traversal elements: '%s'", name, ec.Path))
		}
	}

	if ec.SiteURL == "" {
		errs = append(errs, fmt.Sprintf("  - environment '%s': missing required 'site_url' field", name))
	} else {
		u, err := url.Parse(ec.SiteURL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("  - environment '%s': invalid site_url: %v", name, err))
		} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("  - environment '%s': site_url must be an http(s) URL, got '%s'", name, ec.SiteURL))
		}
	}

	for i, dir := range ec.ProtectedDirs {
		if dir == "" {
			errs = append(errs, fmt.Sprintf("  - environment '%s': protected_dirs[%d] cannot be empty", name, i))
			continue
		}
		if filepath.IsAbs(dir) || strings.Contains(dir, "..") {
			errs = append(errs, fmt.Sprintf("  - environment '%s': protected_dirs[%d] must be relative to the document root, got '%s'", name, i, dir))
		}
	}

	return errs
}
