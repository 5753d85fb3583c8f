package config

import "fmt"

// The two deployment targets. Every command that takes an environment name
// accepts exactly these.
const (
	EnvStaging = "staging"
	EnvLive    = "live"
)

// Environment is a validated deployment target: the host the site lives on
// and where its document root sits.
type Environment struct {
	Name            string
	Host            string
	User            string
	Port            int
	Path            string
	SiteURL         string
	WebUser         string
	MaintenanceUser string
	ProtectedDirs   []string
}

// Config is the validated top-level configuration.
type Config struct {
	SourceBranch     string
	Generator        [][]string
	GeneratorTimeout int
	Artifacts        []string
	Environments     map[string]*Environment
}

// Environment returns the named deployment target.
func (c *Config) Environment(name string) (*Environment, error) {
	env, ok := c.Environments[name]
	if !ok {
		return nil, fmt.Errorf("unknown environment '%s' (expected '%s' or '%s')", name, EnvStaging, EnvLive)
	}
	return env, nil
}

// fileConfig is the raw YAML shape before validation and defaults.
type fileConfig struct {
	SourceBranch     string                       `yaml:"source_branch"`
	Generator        []interface{}                `yaml:"generator"`
	GeneratorTimeout int                          `yaml:"generator_timeout"`
	Artifacts        []string                     `yaml:"artifacts"`
	Environments     map[string]environmentConfig `yaml:"environments"`
}

type environmentConfig struct {
	Host            string   `yaml:"host"`
	User            string   `yaml:"user"`
	Port            int      `yaml:"port"`
	Path            string   `yaml:"path"`
	SiteURL         string   `yaml:"site_url"`
	WebUser         string   `yaml:"web_user"`
	MaintenanceUser string   `yaml:"maintenance_user"`
	ProtectedDirs   []string `yaml:"protected_dirs"`
}
