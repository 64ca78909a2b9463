package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codebot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValidWithToken(t *testing.T) {
	cfg := Default()
	cfg.Discord.Token = "token"
	cfg.Remote.Judge0.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
bot:
  prefix: "!run"
remote:
  backend: jdoodle
  jdoodle:
    client_id: id
    client_secret: secret
sandbox:
  enabled: false
security:
  auth_allowlist:
    discord: ["42"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.Prefix != "!run" || cfg.Bot.HelpCommand != "!help" {
		t.Fatalf("unexpected bot section: %+v", cfg.Bot)
	}
	if cfg.Remote.Backend != BackendJDoodle || cfg.Remote.MaxPolls != 10 {
		t.Fatalf("unexpected remote section: %+v", cfg.Remote)
	}
	if cfg.Sandbox.Enabled {
		t.Fatal("sandbox must be disabled")
	}
	if got := cfg.Security.AuthAllowlist["discord"]; len(got) != 1 || got[0] != "42" {
		t.Fatalf("unexpected allowlist: %v", cfg.Security.AuthAllowlist)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("BOT_TOKEN", " discord-token ")
	t.Setenv("JUDGE0_URL", "http://judge0.local:2358")
	t.Setenv("JUDGE0_AUTH_TOKEN", "secret")
	t.Setenv("CODEBOT_REMOTE_BACKEND", "judge0")
	t.Setenv("CODEBOT_SQLITE_PATH", "/tmp/codebot.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(writeConfig(t, "remote:\n  backend: jdoodle\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.Token != "discord-token" {
		t.Fatalf("token = %q", cfg.Discord.Token)
	}
	if cfg.Remote.Backend != BackendJudge0 || cfg.Remote.Judge0.URL != "http://judge0.local:2358" || cfg.Remote.Judge0.AuthToken != "secret" {
		t.Fatalf("unexpected remote: %+v", cfg.Remote)
	}
	if cfg.SQLite.Path != "/tmp/codebot.db" {
		t.Fatalf("sqlite path = %q", cfg.SQLite.Path)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected kafka: %+v", cfg.Kafka)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateReportsMissingCredentials(t *testing.T) {
	cfg := Default()
	cfg.Remote.Backend = BackendJDoodle
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"BOT_TOKEN", "CLIENT_ID", "KAFKA_BROKERS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q must mention %s", err, want)
		}
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Discord.Token = "t"
	cfg.Remote.Backend = "piston"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "piston") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestValidateNoneBackendRequiresSandbox(t *testing.T) {
	cfg := Default()
	cfg.Discord.Token = "t"
	cfg.Remote.Backend = BackendNone
	cfg.Sandbox.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without any executor")
	}
}

func TestValidateWebTokenHash(t *testing.T) {
	cfg := Default()
	cfg.Discord.Token = "t"
	cfg.Remote.Judge0.APIKey = "key"
	cfg.Web.Enabled = true
	cfg.Web.Tokens = []WebToken{{ID: "ops", TokenSHA256: "short", Subject: "ops", Enabled: true}}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ops") {
		t.Fatalf("expected token hash error, got %v", err)
	}
}
