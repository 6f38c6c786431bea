// Package config loads and validates the bridge configuration: the local
// listen address and the set of cloud accounts to poll.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"remobridge/internal/coordinator"

	"gopkg.in/yaml.v3"
)

// DefaultListenAddr is used when the config does not set a listen address
const DefaultListenAddr = ":8484"

// DefaultTemperatures overrides the built-in setpoint defaults applied when
// switching to a mode never used with an explicit target
type DefaultTemperatures struct {
	Cool float64 `yaml:"cool"`
	Warm float64 `yaml:"warm"`
}

// Account configures one cloud account
type Account struct {
	Name                string               `yaml:"name"`
	AccessToken         string               `yaml:"access_token"`
	Host                string               `yaml:"host"`
	PollIntervalSeconds int                  `yaml:"poll_interval_seconds"`
	DefaultTemperatures *DefaultTemperatures `yaml:"default_temperatures"`
}

// Interval returns the configured poll interval, zero when unset so the
// coordinator applies its default
func (a *Account) Interval() time.Duration {
	return time.Duration(a.PollIntervalSeconds) * time.Second
}

// Config is the root configuration
type Config struct {
	ListenAddr string    `yaml:"listen_addr"`
	Accounts   []Account `yaml:"accounts"`
}

// Load reads and validates a YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// FromEnv synthesizes a single-account config from REMO_ACCESS_TOKEN,
// REMO_HOST, REMO_POLL_INTERVAL and LISTEN_ADDR when no config file is given
func FromEnv() (*Config, error) {
	token := os.Getenv("REMO_ACCESS_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("REMO_ACCESS_TOKEN must be set when no config file is given")
	}

	account := Account{
		Name:        "default",
		AccessToken: token,
		Host:        os.Getenv("REMO_HOST"),
	}
	if raw := os.Getenv("REMO_POLL_INTERVAL"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("REMO_POLL_INTERVAL: %w", err)
		}
		account.PollIntervalSeconds = seconds
	}

	cfg := &Config{
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		Accounts:   []Account{account},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Validate rejects configurations the daemon must not run with: missing
// tokens, duplicate account names, poll intervals below the floor.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}

	seen := make(map[string]struct{}, len(c.Accounts))
	for i := range c.Accounts {
		account := &c.Accounts[i]
		if account.Name == "" {
			return fmt.Errorf("account %d: name is required", i)
		}
		if _, dup := seen[account.Name]; dup {
			return fmt.Errorf("account %q: duplicate name", account.Name)
		}
		seen[account.Name] = struct{}{}

		if account.AccessToken == "" {
			return fmt.Errorf("account %q: access_token is required", account.Name)
		}
		if interval := account.Interval(); interval != 0 && interval < coordinator.MinInterval {
			return fmt.Errorf("account %q: poll interval %s is below the %s minimum",
				account.Name, interval, coordinator.MinInterval)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
}
