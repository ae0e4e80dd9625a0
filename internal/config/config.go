// Package config loads the shared settings every EPP script needs: where
// the LIMS lives, how to authenticate, and where logs and changelogs go.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server-wide configuration lives.
const DefaultPath = "/etc/limsepp.yaml"

// Config is the on-disk configuration. Credentials and locations may also
// arrive via environment overrides, which win over the file.
type Config struct {
	BaseURI  string `yaml:"baseuri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	MainLog  string `yaml:"main_log"`
	Log      struct {
		Level string `yaml:"level"` // debug, info, warn, error
	} `yaml:"log"`
	Audit struct {
		Driver string `yaml:"driver"` // file|sqlite|postgres|memory
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"audit"`
	Blob struct {
		Driver string `yaml:"driver"` // fs|s3|memory
		Root   string `yaml:"root"`
		Bucket string `yaml:"bucket"`
	} `yaml:"blob"`
}

func (c *Config) validate() error {
	if c.BaseURI == "" {
		return fmt.Errorf("baseuri is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required")
	}
	return nil
}

// applyEnv layers environment overrides onto the file contents.
func (c *Config) applyEnv() {
	if v := os.Getenv("LIMSEPP_BASEURI"); v != "" {
		c.BaseURI = v
	}
	if v := os.Getenv("LIMSEPP_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("LIMSEPP_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("LIMSEPP_MAIN_LOG"); v != "" {
		c.MainLog = v
	}
}

// Load reads the configuration at path; an empty path falls back to
// LIMSEPP_CONFIG, then DefaultPath. A missing file is acceptable as long as
// the environment supplies the required values.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("LIMSEPP_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env-only configuration
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
