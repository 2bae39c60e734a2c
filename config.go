package napmsg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk bridge configuration. All fields are optional; the
// zero value selects the built-in defaults, so a missing file and an empty
// file behave the same.
type Config struct {
	// Exec is the path to the nap-msg executable.
	Exec string `yaml:"exec"`

	// NapcatURL is the Napcat endpoint the backend relays to.
	NapcatURL string `yaml:"napcat_url"`

	// DefaultTimeout is the per-request timeout in seconds, the unit the
	// wire protocol itself uses. A negative value disables request timers.
	DefaultTimeout float64 `yaml:"default_timeout"`

	// Env is extra environment for the backend process.
	Env map[string]string `yaml:"env"`

	// ForwardUserID overrides the sender id stamped on forward bundles.
	ForwardUserID string `yaml:"forward_user_id"`

	// ForwardNickname overrides the sender nickname on forward bundles.
	ForwardNickname string `yaml:"forward_nickname"`
}

// LoadConfig reads and parses a bridge config file.
// Returns an empty config if the file does not exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}

		return nil, fmt.Errorf("failed to read bridge config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bridge config: %w", err)
	}

	return &cfg, nil
}

// Options converts the config into functional options, skipping unset
// fields. The forward identity fields become backend environment variables,
// layered over any explicit Env entries:
//
//	cfg, err := napmsg.LoadConfig("bridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = client.Start(ctx, cfg.Options()...)
func (c *Config) Options() []Option {
	var opts []Option

	if c.Exec != "" {
		opts = append(opts, WithExecPath(c.Exec))
	}
	if c.NapcatURL != "" {
		opts = append(opts, WithNapcatURL(c.NapcatURL))
	}
	if c.DefaultTimeout != 0 {
		opts = append(opts, WithDefaultTimeout(time.Duration(c.DefaultTimeout*float64(time.Second))))
	}

	env := make(map[string]string, len(c.Env)+2)
	for k, v := range c.Env {
		env[k] = v
	}
	if c.ForwardUserID != "" {
		env[ForwardUserIDEnv] = c.ForwardUserID
	}
	if c.ForwardNickname != "" {
		env[ForwardNicknameEnv] = c.ForwardNickname
	}
	if len(env) > 0 {
		opts = append(opts, WithEnv(env))
	}

	return opts
}
