package model

import "time"

// Config is the complete client configuration
type Config struct {
	Ledger   LedgerConfig   `yaml:"ledger"`
	Relayer  RelayerConfig  `yaml:"relayer"`
	Identity IdentityConfig `yaml:"identity"`
	Cache    CacheConfig    `yaml:"cache"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Status   StatusConfig   `yaml:"status"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

// LedgerConfig points at the ledger relay exposing the record contract
type LedgerConfig struct {
	URL             string  `yaml:"url"`
	ContractAddress string  `yaml:"contract_address"` // Empty means resolve from the relay
	RequestsPerSec  float64 `yaml:"requests_per_second"`
	Burst           int     `yaml:"burst"`
	ReadRetries     int     `yaml:"read_retries"`
}

// RelayerConfig points at the confidential-compute relayer
type RelayerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // Encryption and decryption may be slow
}

// IdentityConfig selects the signing identity
type IdentityConfig struct {
	Address     string `yaml:"address"`
	SignerKey   string `yaml:"signer_key,omitempty"` // Hex ed25519 seed, prefer LANGLEARN_IDENTITY_SIGNER_KEY
	AutoApprove bool   `yaml:"auto_approve"`         // Skip the interactive signing prompt
}

// CacheConfig configures the cache for immutable ledger data
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty"` // Empty disables the disk layer
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// RefreshConfig bounds the record refresh fan-out
type RefreshConfig struct {
	Workers int `yaml:"workers"`
}

// StatusConfig sets how long terminal statuses stay visible
type StatusConfig struct {
	SuccessTTL time.Duration `yaml:"success_ttl"`
	ErrorTTL   time.Duration `yaml:"error_ttl"`
}

// HTTPConfig configures the outbound HTTP clients
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty"`
	NoProxy    string        `yaml:"no_proxy,omitempty"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Mode  string `yaml:"mode"` // dev or prod
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			URL:            "http://localhost:8545",
			RequestsPerSec: 10,
			Burst:          5,
			ReadRetries:    3,
		},
		Relayer: RelayerConfig{
			URL:     "http://localhost:8546",
			Timeout: 2 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Refresh: RefreshConfig{
			Workers: 4,
		},
		Status: StatusConfig{
			SuccessTTL: 2 * time.Second,
			ErrorTTL:   3 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "langlearn/0.1",
		},
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
	}
}
