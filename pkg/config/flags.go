package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Cache  string
	Config string
	Set    map[string]bool
}

// ParseFlags parses command-line flags and records which were explicitly set.
func ParseFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path for durable state")
	cachePtr := flag.String("cache", "./.cache", "Pebble DB path for the volatile cache")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Cache: *cachePtr, Config: *cfgPtr, Set: set}
}

// LoadEffective merges config file, environment and flags into the final
// runtime configuration. Precedence: flags > env > file > defaults.
func LoadEffective(fl Flags) (*Config, error) {
	cfg := &Config{}
	if fi, err := os.Stat(fl.Config); err == nil && !fi.IsDir() {
		loaded, err := Load(fl.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if fl.Set["config"] {
		// an explicitly-requested config file must exist
		return nil, fmt.Errorf("config file %s not found", fl.Config)
	}
	ApplyEnv(cfg)
	if fl.Set["addr"] {
		if h, p, ok := splitAddr(fl.Addr); ok {
			cfg.Server.Address = h
			cfg.Server.Port = p
		}
	}
	if fl.Set["db"] || cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = fl.DB
	}
	if fl.Set["cache"] || cfg.Storage.CachePath == "" {
		cfg.Storage.CachePath = fl.Cache
	}
	Defaults(cfg)
	return cfg, nil
}

func splitAddr(addr string) (string, int, bool) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, false
	}
	pi, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, false
	}
	return h, pi, true
}
