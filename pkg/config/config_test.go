package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9090
storage:
  db_path: "/tmp/db"
  cache_path: "/tmp/cache"
auth:
  jwt_secret: "s3cret"
ws:
  outbound_queue: 128
  rate_rps: 5
logging:
  level: "debug"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("expected 127.0.0.1:9090; got %q", cfg.Addr())
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.WS.OutboundQueue != 128 || cfg.WS.RateRPS != 5 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	p := writeConfig(t, "server: [not a map")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("COLLABD_ADDR", "0.0.0.0:7000")
	t.Setenv("COLLABD_JWT_SECRET", "env-secret")
	t.Setenv("COLLABD_RATE_RPS", "2.5")
	cfg := &Config{}
	cfg.Auth.JWTSecret = "file-secret"
	if !ApplyEnv(cfg) {
		t.Fatalf("expected env usage reported")
	}
	if cfg.Server.Address != "0.0.0.0" || cfg.Server.Port != 7000 {
		t.Fatalf("addr env not applied: %+v", cfg.Server)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("expected env to win over file; got %q", cfg.Auth.JWTSecret)
	}
	if cfg.WS.RateRPS != 2.5 {
		t.Fatalf("rate env not applied: %v", cfg.WS.RateRPS)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	Defaults(cfg)
	if cfg.WS.OutboundQueue != 256 || cfg.WS.HeartbeatSeconds != 30 || cfg.WS.IdleSeconds != 90 {
		t.Fatalf("unexpected ws defaults %+v", cfg.WS)
	}
	if cfg.WS.PublishTimeoutMS != 2000 {
		t.Fatalf("expected 2s publish timeout; got %d", cfg.WS.PublishTimeoutMS)
	}
	if cfg.Addr() != ":8080" {
		t.Fatalf("expected :8080; got %q", cfg.Addr())
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	Defaults(cfg)
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing secret rejected")
	}
	cfg.Auth.JWTSecret = "s"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	cfg.Storage.CachePath = cfg.Storage.DBPath
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected shared db/cache path rejected")
	}
}

func TestLoadEffectivePrecedence(t *testing.T) {
	p := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9090
auth:
  jwt_secret: "file-secret"
`)
	t.Setenv("COLLABD_JWT_SECRET", "env-secret")

	fl := Flags{
		Addr:   "0.0.0.0:7000",
		DB:     "./.database",
		Cache:  "./.cache",
		Config: p,
		Set:    map[string]bool{"addr": true},
	}
	cfg, err := LoadEffective(fl)
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	// flag wins over file for the address
	if cfg.Addr() != "0.0.0.0:7000" {
		t.Fatalf("expected flag addr; got %q", cfg.Addr())
	}
	// env wins over file for the secret
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("expected env secret; got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Storage.DBPath != "./.database" {
		t.Fatalf("expected default db path; got %q", cfg.Storage.DBPath)
	}
}

func TestLoadEffectiveMissingExplicitConfig(t *testing.T) {
	fl := Flags{
		Config: filepath.Join(t.TempDir(), "nope.yaml"),
		Set:    map[string]bool{"config": true},
	}
	if _, err := LoadEffective(fl); err == nil {
		t.Fatalf("expected missing explicit config rejected")
	}
}

func TestLoadEffectiveAbsentDefaultConfig(t *testing.T) {
	fl := Flags{
		Addr:   ":8080",
		DB:     "./.database",
		Cache:  "./.cache",
		Config: filepath.Join(t.TempDir(), "config.yaml"),
		Set:    map[string]bool{},
	}
	cfg, err := LoadEffective(fl)
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if cfg.Storage.DBPath != "./.database" {
		t.Fatalf("expected flag db path fallback; got %q", cfg.Storage.DBPath)
	}
}
