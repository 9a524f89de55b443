package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
		// CachePath backs the shared volatile cache (presence bindings,
		// online flags, room membership mirror).
		CachePath string `yaml:"cache_path"`
	} `yaml:"storage"`
	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		TokenTTLMin int    `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`
	WS struct {
		OutboundQueue    int     `yaml:"outbound_queue"`
		HeartbeatSeconds int     `yaml:"heartbeat_seconds"`
		IdleSeconds      int     `yaml:"idle_seconds"`
		PublishTimeoutMS int     `yaml:"publish_timeout_ms"`
		RateRPS          float64 `yaml:"rate_rps"`
		RateBurst        int     `yaml:"rate_burst"`
	} `yaml:"ws"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overlays COLLABD_* environment variables onto cfg. Envs win over
// file values; flags (applied by the caller) win over both.
func ApplyEnv(cfg *Config) bool {
	used := false
	if v := os.Getenv("COLLABD_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("COLLABD_DB_PATH"); v != "" {
		used = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("COLLABD_CACHE_PATH"); v != "" {
		used = true
		cfg.Storage.CachePath = v
	}
	if v := os.Getenv("COLLABD_JWT_SECRET"); v != "" {
		used = true
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("COLLABD_LOG_LEVEL"); v != "" {
		used = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COLLABD_LOG_FORMAT"); v != "" {
		used = true
		cfg.Logging.Format = v
	}
	if v := os.Getenv("COLLABD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			used = true
			cfg.WS.RateRPS = f
		}
	}
	if v := os.Getenv("COLLABD_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			used = true
			cfg.WS.RateBurst = n
		}
	}
	return used
}

// Defaults fills unset fields with the documented defaults.
func Defaults(cfg *Config) {
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "./.database"
	}
	if cfg.Storage.CachePath == "" {
		cfg.Storage.CachePath = "./.cache"
	}
	if cfg.Auth.TokenTTLMin <= 0 {
		cfg.Auth.TokenTTLMin = 24 * 60
	}
	if cfg.WS.OutboundQueue <= 0 {
		cfg.WS.OutboundQueue = 256
	}
	if cfg.WS.HeartbeatSeconds <= 0 {
		cfg.WS.HeartbeatSeconds = 30
	}
	if cfg.WS.IdleSeconds <= 0 {
		cfg.WS.IdleSeconds = 90
	}
	if cfg.WS.PublishTimeoutMS <= 0 {
		cfg.WS.PublishTimeoutMS = 2000
	}
	if cfg.WS.RateRPS <= 0 {
		cfg.WS.RateRPS = 20
	}
	if cfg.WS.RateBurst <= 0 {
		cfg.WS.RateBurst = 40
	}
}

// Validate rejects configurations the server cannot run with.
func Validate(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or COLLABD_JWT_SECRET) must be set")
	}
	if cfg.Storage.DBPath == cfg.Storage.CachePath {
		return fmt.Errorf("storage.db_path and storage.cache_path must differ")
	}
	return nil
}
