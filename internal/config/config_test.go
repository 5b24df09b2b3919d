package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/rangerwatch/internal/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rangerwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func checkSpec(name, policy, id string) store.CheckSpec {
	return store.CheckSpec{Name: name, Policy: policy, PolicyID: id}
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	if c.Ranger.Port != 6080 {
		t.Errorf("expected port 6080, got %d", c.Ranger.Port)
	}
	if c.DisplayName != "Ranger" {
		t.Errorf("expected display name Ranger, got %s", c.DisplayName)
	}
	if c.Ranger.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", c.Ranger.Timeout)
	}
	if c.ListenAddr != ":8080" {
		t.Errorf("expected :8080, got %s", c.ListenAddr)
	}
	if c.RefreshEvery != 2*time.Minute {
		t.Errorf("expected 2m, got %v", c.RefreshEvery)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
displayName: "Hadoop Ranger"
ranger:
  host: ranger.internal
  ssl: true
  timeout: 30s
checks:
  - name: hdfs-root
    policyName: "hdfs root"
  - policyId: "12"
    recursive: true
    noAudit: true
`)

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.DisplayName != "Hadoop Ranger" {
		t.Errorf("expected display name override, got %s", c.DisplayName)
	}
	if c.Ranger.Host != "ranger.internal" || !c.Ranger.SSL {
		t.Errorf("unexpected ranger config: %+v", c.Ranger)
	}
	if c.Ranger.Timeout != 30*time.Second {
		t.Errorf("expected 30s, got %v", c.Ranger.Timeout)
	}
	// defaults should still apply for unset fields
	if c.Ranger.Port != DefaultPort {
		t.Errorf("expected default port, got %d", c.Ranger.Port)
	}
	if len(c.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(c.Checks))
	}
	if c.Checks[0].Policy != "hdfs root" || c.Checks[0].Name != "hdfs-root" {
		t.Errorf("unexpected first check: %+v", c.Checks[0])
	}
	if c.Checks[1].PolicyID != "12" || !c.Checks[1].Recursive || !c.Checks[1].NoAudit {
		t.Errorf("unexpected second check: %+v", c.Checks[1])
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Ranger.Port = 70000 }, "ranger.port"},
		{"zero timeout", func(c *Config) { c.Ranger.Timeout = 0 }, "ranger.timeout"},
		{"negative retries", func(c *Config) { c.Ranger.Retries = -1 }, "ranger.retries"},
		{"fast refresh", func(c *Config) { c.RefreshEvery = time.Second }, "refreshEvery"},
		{"empty listen", func(c *Config) { c.ListenAddr = "" }, "listenAddr"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"check without target", func(c *Config) {
			c.Checks = append(c.Checks, checkSpec("x", "", ""))
		}, "policyName or policyId"},
		{"duplicate check", func(c *Config) {
			c.Checks = append(c.Checks, checkSpec("a", "p1", ""), checkSpec("a", "p2", ""))
		}, "duplicate"},
		{"pagerduty without key", func(c *Config) {
			c.Notifications.Webhooks = []WebhookConfig{{Type: "pagerduty"}}
		}, "routingKey"},
		{"unknown webhook type", func(c *Config) {
			c.Notifications.Webhooks = []WebhookConfig{{Type: "teams", URL: "http://x"}}
		}, "unknown type"},
		{"webhook without url", func(c *Config) {
			c.Notifications.Webhooks = []WebhookConfig{{Type: "slack"}}
		}, "url is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"RANGER_HOST":     "env-host",
		"RANGER_PORT":     "6182",
		"RANGER_USER":     "admin",
		"RANGER_PASSWORD": "secret",
	}
	c := Defaults()
	c.Ranger.User = "from-file"
	if err := c.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if c.Ranger.Host != "env-host" {
		t.Errorf("host = %s, want env-host", c.Ranger.Host)
	}
	if c.Ranger.Port != 6182 {
		t.Errorf("port = %d, want 6182", c.Ranger.Port)
	}
	if c.Ranger.User != "from-file" {
		t.Errorf("env must not override configured user, got %s", c.Ranger.User)
	}
	if c.Ranger.Password != "secret" {
		t.Errorf("password not taken from env")
	}
}

func TestApplyEnv_BadPort(t *testing.T) {
	c := Defaults()
	err := c.ApplyEnv(func(k string) string {
		if k == "RANGER_PORT" {
			return "http"
		}
		return ""
	})
	if err == nil {
		t.Error("expected error for non-numeric RANGER_PORT")
	}
}
