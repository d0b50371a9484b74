package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"` // debug, info, warn or error
}

type JWTConfig struct {
	Secret string `toml:"secret"` // For JWT signing
}

type StorageConfig struct {
	DataDir      string `toml:"data_dir"`
	DomainsFile  string `toml:"domains_file"`
	AccountsFile string `toml:"accounts_file"`
}

// DiscoveryConfig carries the timeouts of the discovery pipeline. Every
// value has a default; only unusual deployments need to touch these.
type DiscoveryConfig struct {
	ProbeTimeoutMs        int `toml:"probe_timeout_ms"`
	ValidateTimeoutMs     int `toml:"validate_timeout_ms"`
	MXTimeoutMs           int `toml:"mx_timeout_ms"`
	AutodiscoverTimeoutMs int `toml:"autodiscover_timeout_ms"`
	GuessBudgetMs         int `toml:"guess_budget_ms"`
	ConsistencyTimeoutMs  int `toml:"consistency_timeout_ms"`
}

// IMAPConfig tunes the session manager's account warm-up.
type IMAPConfig struct {
	InitialEmailLimit    int `toml:"initial_email_limit"`
	WarmupHeaderBudgetMs int `toml:"warmup_header_budget_ms"`
}

type OAuthConfig struct {
	ClientID      string `toml:"client_id"`
	TokenEndpoint string `toml:"token_endpoint"` // Override for testing only
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"` // host:port of the SOCKS5 proxy
	User    string `toml:"user"`
	Pass    string `toml:"pass"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	JWT       JWTConfig       `toml:"jwt"`
	Storage   StorageConfig   `toml:"storage"`
	Discovery DiscoveryConfig `toml:"discovery"`
	IMAP      IMAPConfig      `toml:"imap"`
	OAuth     OAuthConfig     `toml:"oauth"`
	Proxy     ProxyConfig     `toml:"proxy"`
	// Named proxies that accounts can reference via their proxy_id;
	// accounts without one use the [proxy] default above.
	Proxies map[string]ProxyConfig `toml:"proxies"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Server.LogLevel = "info"
	config.Storage.DataDir = "./data"
	config.Storage.DomainsFile = "domains.txt"
	config.Storage.AccountsFile = "accounts.txt"

	config.Discovery.ProbeTimeoutMs = 5000
	config.Discovery.ValidateTimeoutMs = 3000
	config.Discovery.MXTimeoutMs = 10000
	config.Discovery.AutodiscoverTimeoutMs = 10000
	config.Discovery.GuessBudgetMs = 8000
	config.Discovery.ConsistencyTimeoutMs = 5000

	config.IMAP.InitialEmailLimit = 50
	config.IMAP.WarmupHeaderBudgetMs = 2000

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	return &config, nil
}

// Duration helpers so callers don't juggle millisecond ints.

func (d DiscoveryConfig) ProbeTimeout() time.Duration {
	return time.Duration(d.ProbeTimeoutMs) * time.Millisecond
}

func (d DiscoveryConfig) ValidateTimeout() time.Duration {
	return time.Duration(d.ValidateTimeoutMs) * time.Millisecond
}

func (d DiscoveryConfig) MXTimeout() time.Duration {
	return time.Duration(d.MXTimeoutMs) * time.Millisecond
}

func (d DiscoveryConfig) AutodiscoverTimeout() time.Duration {
	return time.Duration(d.AutodiscoverTimeoutMs) * time.Millisecond
}

func (d DiscoveryConfig) GuessBudget() time.Duration {
	return time.Duration(d.GuessBudgetMs) * time.Millisecond
}

func (d DiscoveryConfig) ConsistencyTimeout() time.Duration {
	return time.Duration(d.ConsistencyTimeoutMs) * time.Millisecond
}

func (i IMAPConfig) WarmupHeaderBudget() time.Duration {
	return time.Duration(i.WarmupHeaderBudgetMs) * time.Millisecond
}
