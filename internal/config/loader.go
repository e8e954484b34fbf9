package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Load reads and decodes the HCL config file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields from Default so a partial
// config file (e.g. one that only overrides discovery.subnet) is valid.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Daemon.Bind == "" {
		cfg.Daemon.Bind = def.Daemon.Bind
	}
	if cfg.Daemon.HeartbeatIntervalSecs == 0 {
		cfg.Daemon.HeartbeatIntervalSecs = def.Daemon.HeartbeatIntervalSecs
	}
	if cfg.Daemon.APIBind == "" {
		cfg.Daemon.APIBind = def.Daemon.APIBind
	}
	if cfg.Discovery.Interface == "" {
		cfg.Discovery.Interface = def.Discovery.Interface
	}
	if cfg.Discovery.PrefixLen == 0 {
		cfg.Discovery.PrefixLen = def.Discovery.PrefixLen
	}
	if cfg.Discovery.MgmtPort == 0 {
		cfg.Discovery.MgmtPort = def.Discovery.MgmtPort
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = def.Cache.Path
	}
	if cfg.HDD.BaseURL == "" {
		cfg.HDD.BaseURL = def.HDD.BaseURL
	}
}

func readRaw(path string) ([]byte, error) {
	return os.ReadFile(path)
}
