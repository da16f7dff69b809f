package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variables inside
// the file are expanded, and the CASPER_* variables override their fields
// afterward so a bare environment can run without editing the file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Chain.RPCURL == "" {
		return nil, fmt.Errorf("chain.rpc_url is required (or set CASPER_RPC_URL)")
	}
	if cfg.Chain.SidecarURL == "" {
		return nil, fmt.Errorf("chain.sidecar_url is required (or set CASPER_SIDECAR_URL)")
	}

	return &cfg, nil
}

// applyEnv applies the recognized environment overrides.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("CASPER_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("CASPER_SIDECAR_URL"); v != "" {
		cfg.Chain.SidecarURL = v
	}
	if v := os.Getenv("CASPER_CONTRACT_HASH"); v != "" {
		cfg.Chain.ContractHash = v
	}
	if v := os.Getenv("CASPER_EVENTS_URL"); v != "" {
		cfg.Chain.EventsURL = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Chain.Name == "" {
		cfg.Chain.Name = "casper"
	}
	if cfg.Chain.Timeout == 0 {
		cfg.Chain.Timeout = 10 * time.Second
	}
	if cfg.Chain.EventsURL == "" && cfg.Chain.RPCURL != "" {
		// The node serves SSE next to its RPC port by convention.
		cfg.Chain.EventsURL = cfg.Chain.RPCURL + "/events/main"
	}
	if cfg.Stream.BaseDelay == 0 {
		cfg.Stream.BaseDelay = 1 * time.Second
	}
	if cfg.Stream.MaxDelay == 0 {
		cfg.Stream.MaxDelay = 60 * time.Second
	}
	if cfg.Stream.JitterMax == 0 {
		cfg.Stream.JitterMax = 1 * time.Second
	}
	if cfg.Dedup.Backend == "" {
		cfg.Dedup.Backend = "memory"
	}
	if cfg.Dedup.CacheExpiry == 0 {
		cfg.Dedup.CacheExpiry = time.Hour
	}
	if cfg.Dedup.SweepInterval == 0 {
		cfg.Dedup.SweepInterval = 10 * time.Minute
	}
}
