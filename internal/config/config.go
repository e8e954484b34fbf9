// Package config loads and hot-reloads the daemon's HCL configuration
// file.
package config

// Config is the root of dendrited's configuration file.
type Config struct {
	Daemon    DaemonConfig    `hcl:"daemon,block" json:"daemon"`
	Discovery DiscoveryConfig `hcl:"discovery,block" json:"discovery"`
	Cache     CacheConfig     `hcl:"cache,block" json:"cache"`
	HDD       HDDConfig       `hcl:"hdd,block" json:"hdd"`
}

// DaemonConfig controls the MGMT transport bind address and the
// liveness heartbeat loop.
type DaemonConfig struct {
	Bind                  string `hcl:"bind,optional" json:"bind"`
	HeartbeatIntervalSecs int    `hcl:"heartbeat_interval_secs,optional" json:"heartbeat_interval_secs"`
	HeartbeatEnabled      bool   `hcl:"heartbeat_enabled,optional" json:"heartbeat_enabled"`
	OfflineRetentionSecs  int    `hcl:"offline_retention_secs,optional" json:"offline_retention_secs"`
	APIBind               string `hcl:"api_bind,optional" json:"api_bind"`
}

// DiscoveryConfig controls the ARP sweep target.
type DiscoveryConfig struct {
	Interface string `hcl:"interface,optional" json:"interface"`
	Subnet    string `hcl:"subnet,optional" json:"subnet"`
	PrefixLen int    `hcl:"prefix_len,optional" json:"prefix_len"`
	MgmtPort  int    `hcl:"mgmt_port,optional" json:"mgmt_port"`
}

// CacheConfig controls where content-addressed assets are stored on disk.
type CacheConfig struct {
	Path string `hcl:"path,optional" json:"path"`
}

// HDDConfig controls where hardware description documents and models
// are fetched from.
type HDDConfig struct {
	BaseURL string `hcl:"base_url,optional" json:"base_url"`
}

// Default returns the configuration a fresh install starts with.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Bind:                  "0.0.0.0:4242",
			HeartbeatIntervalSecs: 30,
			HeartbeatEnabled:      false,
			OfflineRetentionSecs:  0,
			APIBind:               "127.0.0.1:8420",
		},
		Discovery: DiscoveryConfig{
			Interface: "eth0",
			Subnet:    "192.168.1.0",
			PrefixLen: 24,
			MgmtPort:  4242,
		},
		Cache: CacheConfig{
			Path: "/var/lib/dendrite/cache",
		},
		HDD: HDDConfig{
			BaseURL: "https://assets.example.invalid/hdd",
		},
	}
}
