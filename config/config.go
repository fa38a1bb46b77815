// Package config loads browser session settings from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wanmail/world"
	"github.com/wanmail/world/devtools"
	"github.com/wanmail/world/remote"
	"github.com/wanmail/world/static"
)

// Backends.
const (
	Remote   = "remote"
	DevTools = "devtools"
	Static   = "static"
)

// Config represents a session configuration file.
//
//	backend: remote
//	base_url: http://localhost:8080
//	wait_timeout: 5s
//	capabilities:
//	  browser: chrome
//	  headless: true
//	  driver_path: /usr/bin/chromedriver
type Config struct {
	// Backend selects the Driver implementation.
	Backend      string             `yaml:"backend"`
	Capabilities world.Capabilities `yaml:"capabilities"`
	World        world.Config       `yaml:",inline"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend:      Remote,
		Capabilities: world.DefaultCapabilities(),
		World: world.Config{
			WaitTimeout:  world.DefaultWaitTimeout,
			PollInterval: world.DefaultPollInterval,
		},
	}
}

// Load reads path over the defaults. Durations are written as "500ms" or
// "10s".
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings no backend can use.
func (c *Config) Validate() error {
	if _, err := c.Dialer(); err != nil {
		return err
	}
	if c.World.WaitTimeout < 0 || c.World.PollInterval < 0 {
		return fmt.Errorf("negative wait durations (wait_timeout %v, poll_interval %v)", c.World.WaitTimeout, c.World.PollInterval)
	}
	return nil
}

// Dialer returns the Dialer of the configured backend.
func (c *Config) Dialer() (world.Dialer, error) {
	switch c.Backend {
	case "", Remote:
		return remote.Dial, nil
	case DevTools:
		return devtools.Dial, nil
	case Static:
		return static.Dial, nil
	}
	return nil, fmt.Errorf("unknown backend %q", c.Backend)
}

// NewSession returns a Session that dials the configured backend on first
// use.
func (c *Config) NewSession() (*world.Session, error) {
	dial, err := c.Dialer()
	if err != nil {
		return nil, err
	}
	return world.NewSession(dial, c.Capabilities), nil
}
