package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
chain:
  name: casper-test
  rpc_url: http://node:7777/rpc
  sidecar_url: http://sidecar:18888
  events_url: http://node:9999/events/main
  contract_hash: hash-abc
  timeout: 5s
stream:
  base_delay: 2s
  max_delay: 30s
dedup:
  backend: redis
  cache_expiry: 30m
redis:
  url: redis://localhost:6379/0
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Chain.RPCURL != "http://node:7777/rpc" {
		t.Errorf("rpc_url = %q", cfg.Chain.RPCURL)
	}
	if cfg.Chain.EventsURL != "http://node:9999/events/main" {
		t.Errorf("events_url = %q", cfg.Chain.EventsURL)
	}
	if cfg.Stream.BaseDelay != 2*time.Second || cfg.Stream.MaxDelay != 30*time.Second {
		t.Errorf("stream backoff = (%v, %v)", cfg.Stream.BaseDelay, cfg.Stream.MaxDelay)
	}
	if cfg.Dedup.Backend != "redis" || cfg.Dedup.CacheExpiry != 30*time.Minute {
		t.Errorf("dedup = %+v", cfg.Dedup)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
chain:
  rpc_url: http://node:7777/rpc
  sidecar_url: http://sidecar:18888
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Chain.Name != "casper" {
		t.Errorf("default chain name = %q", cfg.Chain.Name)
	}
	if cfg.Chain.Timeout != 10*time.Second {
		t.Errorf("default timeout = %v", cfg.Chain.Timeout)
	}
	if cfg.Chain.EventsURL != "http://node:7777/rpc/events/main" {
		t.Errorf("derived events_url = %q", cfg.Chain.EventsURL)
	}
	if cfg.Stream.BaseDelay != time.Second || cfg.Stream.MaxDelay != 60*time.Second || cfg.Stream.JitterMax != time.Second {
		t.Errorf("default backoff = %+v", cfg.Stream)
	}
	if cfg.Dedup.Backend != "memory" || cfg.Dedup.CacheExpiry != time.Hour || cfg.Dedup.SweepInterval != 10*time.Minute {
		t.Errorf("default dedup = %+v", cfg.Dedup)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CASPER_RPC_URL", "http://env-node:7777/rpc")
	t.Setenv("CASPER_SIDECAR_URL", "http://env-sidecar:18888")
	t.Setenv("CASPER_CONTRACT_HASH", "hash-from-env")
	t.Setenv("CASPER_EVENTS_URL", "http://env-node:9999/events/main")

	path := writeConfig(t, `
chain:
  rpc_url: http://file-node:7777/rpc
  sidecar_url: http://file-sidecar:18888
  contract_hash: hash-from-file
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chain.RPCURL != "http://env-node:7777/rpc" {
		t.Errorf("rpc_url = %q, want the env override", cfg.Chain.RPCURL)
	}
	if cfg.Chain.SidecarURL != "http://env-sidecar:18888" {
		t.Errorf("sidecar_url = %q, want the env override", cfg.Chain.SidecarURL)
	}
	if cfg.Chain.ContractHash != "hash-from-env" {
		t.Errorf("contract_hash = %q, want the env override", cfg.Chain.ContractHash)
	}
	if cfg.Chain.EventsURL != "http://env-node:9999/events/main" {
		t.Errorf("events_url = %q, want the env override", cfg.Chain.EventsURL)
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	t.Setenv("TEST_SIDECAR_HOST", "expanded-sidecar")

	path := writeConfig(t, `
chain:
  rpc_url: http://node:7777/rpc
  sidecar_url: http://${TEST_SIDECAR_HOST}:18888
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chain.SidecarURL != "http://expanded-sidecar:18888" {
		t.Errorf("sidecar_url = %q, want env-expanded value", cfg.Chain.SidecarURL)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no rpc url", "chain:\n  sidecar_url: http://sidecar:18888\n"},
		{"no sidecar url", "chain:\n  rpc_url: http://node:7777/rpc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load should reject incomplete chain config")
			}
		})
	}
}

func TestLoad_FileMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestChainConfig_AdapterDerivation(t *testing.T) {
	c := ChainConfig{
		Name:       "casper-test",
		RPCURL:     "http://node:7777/rpc",
		SidecarURL: "http://sidecar:18888",
		Timeout:    5 * time.Second,
	}

	n := c.NodeConfig()
	if n.RPCURL != c.RPCURL || n.ChainName != c.Name || n.Timeout != c.Timeout {
		t.Errorf("node config = %+v", n)
	}
	s := c.SidecarConfig()
	if s.RestURL != c.SidecarURL || s.ChainName != c.Name || s.Timeout != c.Timeout {
		t.Errorf("sidecar config = %+v", s)
	}
}
