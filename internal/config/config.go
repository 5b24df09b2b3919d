package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/rangerwatch/internal/store"
)

// DefaultPort is the Ranger Admin HTTP port.
const DefaultPort = 6080

// RangerConfig locates and authenticates against Ranger Admin.
type RangerConfig struct {
	Host        string        `yaml:"host"`
	CAFile      string        `yaml:"caFile"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	SOCKS5      string        `yaml:"socks5"` // host:port of a SOCKS5 proxy
	Port        int           `yaml:"port"`   // default 6080
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"` // connection errors only
	SSL         bool          `yaml:"ssl"`
	SSLNoVerify bool          `yaml:"sslNoVerify"`
}

// WebhookConfig is a single notification target.
type WebhookConfig struct {
	URL        string `yaml:"url"`
	Type       string `yaml:"type"`       // generic, slack, pagerduty
	RoutingKey string `yaml:"routingKey"` // pagerduty only
}

// NotificationConfig controls serve-mode alerts on check transitions.
type NotificationConfig struct {
	Webhooks   []WebhookConfig `yaml:"webhooks"`
	Severities []string        `yaml:"severities"` // default CRITICAL, UNKNOWN
	Cooldown   time.Duration   `yaml:"cooldown"`   // default 1h
	Enabled    bool            `yaml:"enabled"`
}

// Config holds rangerwatch runtime configuration.
type Config struct {
	DisplayName   string             `yaml:"displayName"` // default "Ranger"
	Ranger        RangerConfig       `yaml:"ranger"`
	Checks        []store.CheckSpec  `yaml:"checks"`
	ListenAddr    string             `yaml:"listenAddr"`   // default ":8080"
	MetricsPath   string             `yaml:"metricsPath"`  // default "/metrics"
	HistoryDB     string             `yaml:"historyDB"`    // empty = disabled
	RefreshEvery  time.Duration      `yaml:"refreshEvery"` // default 2m
	Concurrency   int                `yaml:"concurrency"`  // default 4
	Notifications NotificationConfig `yaml:"notifications"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		DisplayName: "Ranger",
		Ranger: RangerConfig{
			Port:    DefaultPort,
			Timeout: 10 * time.Second,
			Retries: 2,
		},
		ListenAddr:   ":8080",
		MetricsPath:  "/metrics",
		RefreshEvery: 2 * time.Minute,
		Concurrency:  4,
	}
}

// Load reads a YAML config file and merges with defaults.
func Load(path string) (*Config, error) {
	c := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

// ApplyEnv fills connection settings the config left unset from
// RANGER_HOST, RANGER_PORT, RANGER_USER and RANGER_PASSWORD.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if c.Ranger.Host == "" {
		c.Ranger.Host = getenv("RANGER_HOST")
	}
	if c.Ranger.User == "" {
		c.Ranger.User = getenv("RANGER_USER")
	}
	if c.Ranger.Password == "" {
		c.Ranger.Password = getenv("RANGER_PASSWORD")
	}
	if v := getenv("RANGER_PORT"); v != "" && c.Ranger.Port == DefaultPort {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RANGER_PORT: %w", err)
		}
		c.Ranger.Port = port
	}
	return nil
}

// Validate checks that the config values are sane.
func (c *Config) Validate() error {
	if c.Ranger.Port < 1 || c.Ranger.Port > 65535 {
		return fmt.Errorf("ranger.port must be between 1 and 65535, got %d", c.Ranger.Port)
	}
	if c.Ranger.Timeout <= 0 {
		return fmt.Errorf("ranger.timeout must be positive, got %s", c.Ranger.Timeout)
	}
	if c.Ranger.Retries < 0 {
		return fmt.Errorf("ranger.retries must not be negative, got %d", c.Ranger.Retries)
	}
	if c.RefreshEvery < 30*time.Second {
		return fmt.Errorf("refreshEvery must be at least 30s, got %s", c.RefreshEvery)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr must not be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	seen := make(map[string]bool, len(c.Checks))
	for i := range c.Checks {
		ch := &c.Checks[i]
		if ch.Policy == "" && ch.PolicyID == "" {
			return fmt.Errorf("checks[%d]: policyName or policyId is required", i)
		}
		label := ch.Label()
		if seen[label] {
			return fmt.Errorf("checks[%d]: duplicate check name %q", i, label)
		}
		seen[label] = true
	}

	for i, wh := range c.Notifications.Webhooks {
		switch wh.Type {
		case "", "generic", "slack":
		case "pagerduty":
			if wh.RoutingKey == "" {
				return fmt.Errorf("notifications.webhooks[%d]: pagerduty requires routingKey", i)
			}
			continue
		default:
			return fmt.Errorf("notifications.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URL == "" {
			return fmt.Errorf("notifications.webhooks[%d]: url is required", i)
		}
	}
	return nil
}
