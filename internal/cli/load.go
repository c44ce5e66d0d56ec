package cli

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/langlearn/internal/model"
)

// loadConfig layers viper values (flags, env, file) over the defaults
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()

	str := func(key string, dst *string) {
		if v.IsSet(key) && v.GetString(key) != "" {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("ledger.url", &cfg.Ledger.URL)
	str("ledger.contract_address", &cfg.Ledger.ContractAddress)
	if v.IsSet("ledger.requests_per_second") {
		cfg.Ledger.RequestsPerSec = v.GetFloat64("ledger.requests_per_second")
	}
	num("ledger.burst", &cfg.Ledger.Burst)
	num("ledger.read_retries", &cfg.Ledger.ReadRetries)

	str("relayer.url", &cfg.Relayer.URL)
	dur("relayer.timeout", &cfg.Relayer.Timeout)

	str("identity.address", &cfg.Identity.Address)
	str("identity.signer_key", &cfg.Identity.SignerKey)
	flag("identity.auto_approve", &cfg.Identity.AutoApprove)

	flag("cache.enabled", &cfg.Cache.Enabled)
	dur("cache.memory_ttl", &cfg.Cache.MemoryTTL)
	str("cache.disk_dir", &cfg.Cache.DiskDir)
	dur("cache.disk_ttl", &cfg.Cache.DiskTTL)

	num("refresh.workers", &cfg.Refresh.Workers)

	dur("status.success_ttl", &cfg.Status.SuccessTTL)
	dur("status.error_ttl", &cfg.Status.ErrorTTL)

	dur("http.timeout", &cfg.HTTP.Timeout)
	str("http.user_agent", &cfg.HTTP.UserAgent)
	str("http.http_proxy", &cfg.HTTP.HTTPProxy)
	str("http.https_proxy", &cfg.HTTP.HTTPSProxy)
	str("http.no_proxy", &cfg.HTTP.NoProxy)

	str("log.mode", &cfg.Log.Mode)
	str("log.level", &cfg.Log.Level)
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *model.Config) error {
	if cfg.Ledger.URL == "" {
		return fmt.Errorf("ledger.url is required")
	}
	if cfg.Relayer.URL == "" {
		return fmt.Errorf("relayer.url is required")
	}
	if cfg.Refresh.Workers < 1 {
		return fmt.Errorf("refresh.workers must be at least 1, got %d", cfg.Refresh.Workers)
	}
	switch cfg.Log.Mode {
	case "dev", "prod":
	default:
		return fmt.Errorf("log.mode must be dev or prod, got %q", cfg.Log.Mode)
	}
	return nil
}
