package config

import (
	"time"

	"github.com/Shubhojit-17/cewce/internal/infra/chain/node"
	"github.com/Shubhojit-17/cewce/internal/infra/chain/sidecar"
	redisclient "github.com/Shubhojit-17/cewce/internal/infra/redis"
	"github.com/Shubhojit-17/cewce/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Chain    ChainConfig        `yaml:"chain"`
	Stream   StreamConfig       `yaml:"stream"`
	Dedup    DedupConfig        `yaml:"dedup"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	NATS     NATSConfig         `yaml:"nats"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ChainConfig holds the Casper access settings shared by both adapters.
type ChainConfig struct {
	Name         string        `yaml:"name"`
	RPCURL       string        `yaml:"rpc_url"`
	SidecarURL   string        `yaml:"sidecar_url"`
	EventsURL    string        `yaml:"events_url"`
	ContractHash string        `yaml:"contract_hash"`
	Timeout      time.Duration `yaml:"timeout"`
}

// NodeConfig derives the node adapter configuration.
func (c ChainConfig) NodeConfig() node.Config {
	return node.Config{RPCURL: c.RPCURL, ChainName: c.Name, Timeout: c.Timeout}
}

// SidecarConfig derives the sidecar adapter configuration.
func (c ChainConfig) SidecarConfig() sidecar.Config {
	return sidecar.Config{RestURL: c.SidecarURL, ChainName: c.Name, Timeout: c.Timeout}
}

// StreamConfig holds reconnect backoff settings.
type StreamConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	JitterMax time.Duration `yaml:"jitter_max"`
}

// DedupConfig holds dedup cache settings. Backend is "memory" or "redis".
type DedupConfig struct {
	Backend       string        `yaml:"backend"`
	CacheExpiry   time.Duration `yaml:"cache_expiry"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// NATSConfig holds the optional audit mirror settings.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
