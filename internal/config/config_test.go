package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	c := qt.New(t)
	t.Setenv("GITLAB_TOKEN", "576932")

	path := writeConfig(t, "config.yaml", `
api:
  url: https://gitlab.example.com/api/v4/
  private_token: ${GITLAB_TOKEN}
  timeout: 5s
  rate_limit_rps: 2.5
user:
  username: testusername
  name: Test
  projects_limit: 10
  admin: true
check_mode: true
email_delete_policy: require
log:
  level: ${GU_TEST_LOG_LEVEL:debug}
  json: true
ledger:
  path: /tmp/runs.sqlite
metrics:
  textfile: /tmp/gitlab_user.prom
`)

	cfg, err := Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.API.URL, qt.Equals, "https://gitlab.example.com/api/v4")
	c.Assert(cfg.API.PrivateToken, qt.Equals, "576932")
	c.Assert(cfg.API.Timeout.Duration(), qt.Equals, 5*time.Second)
	c.Assert(cfg.API.RateLimitRPS, qt.Equals, 2.5)
	c.Assert(cfg.User, qt.DeepEquals, map[string]any{
		"username":       "testusername",
		"name":           "Test",
		"projects_limit": 10,
		"admin":          true,
	})
	c.Assert(cfg.State, qt.Equals, StatePresent)
	c.Assert(cfg.CheckMode, qt.IsTrue)
	c.Assert(cfg.EmailDeletePolicy, qt.Equals, "require")
	c.Assert(cfg.Log.Level, qt.Equals, "debug")
	c.Assert(cfg.Log.JSON, qt.IsTrue)
	c.Assert(cfg.Ledger.Path, qt.Equals, "/tmp/runs.sqlite")
	c.Assert(cfg.Ledger.RetentionDays, qt.Equals, 30)
	c.Assert(cfg.Metrics.Textfile, qt.Equals, "/tmp/gitlab_user.prom")
	c.Assert(cfg.Validate(), qt.IsNil)
}

func TestLoadTOML(t *testing.T) {
	c := qt.New(t)

	path := writeConfig(t, "config.toml", `
state = "absent"

[api]
url = "https://gitlab.example.com/api/v4"
private_token = "${GITLAB_TOKEN_UNSET:fallback}"
timeout = "1m"
strict_lookups = true

[user]
username = "testusername"
projects_limit = 10
`)

	cfg, err := Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.State, qt.Equals, StateAbsent)
	c.Assert(cfg.API.PrivateToken, qt.Equals, "fallback")
	c.Assert(cfg.API.Timeout.Duration(), qt.Equals, time.Minute)
	c.Assert(cfg.API.StrictLookups, qt.IsTrue)
	c.Assert(cfg.User, qt.DeepEquals, map[string]any{
		"username":       "testusername",
		"projects_limit": int64(10),
	})
	c.Assert(cfg.Log.Level, qt.Equals, "info")
}

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := Load(writeConfig(t, "config.yml", "api:\n  url: http://localhost\n"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.User, qt.DeepEquals, map[string]any{})
	c.Assert(cfg.State, qt.Equals, StatePresent)
	c.Assert(cfg.API.Timeout.Duration(), qt.Equals, 30*time.Second)
	c.Assert(cfg.Ledger.Path, qt.Equals, "")
}

func TestLoadErrors(t *testing.T) {
	c := qt.New(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	c.Assert(err, qt.Not(qt.IsNil))

	_, err = Load(writeConfig(t, "bad.yaml", "api:\n  timeout: soon\n"))
	c.Assert(err, qt.ErrorMatches, `failed to parse .*`)

	_, err = Load(writeConfig(t, "bad.toml", "api = [\n"))
	c.Assert(err, qt.ErrorMatches, `(?s)failed to parse .*`)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{API: APIConfig{URL: "http://localhost", PrivateToken: "t"}}
		cfg.setDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing_url", mutate: func(c *Config) { c.API.URL = "" }, want: "api.url is required"},
		{name: "missing_token", mutate: func(c *Config) { c.API.PrivateToken = "" }, want: "api.private_token is required"},
		{name: "bad_state", mutate: func(c *Config) { c.State = "gone" }, want: `state must be "present" or "absent", got "gone"`},
		{name: "bad_policy", mutate: func(c *Config) { c.EmailDeletePolicy = "never" }, want: `email_delete_policy must be "skip" or "require", got "never"`},
		{name: "negative_rps", mutate: func(c *Config) { c.API.RateLimitRPS = -1 }, want: "api.rate_limit_rps must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			c.Assert(err, qt.ErrorMatches, tt.want)
			c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("GU_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{in: "${GU_SET}", want: "value"},
		{in: "${GU_SET:other}", want: "value"},
		{in: "${GU_UNSET:other}", want: "other"},
		{in: "${GU_UNSET}", want: ""},
		{in: "plain", want: "plain"},
		{in: "a-${GU_SET}-b", want: "a-value-b"},
	}
	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
