// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the explicit configuration object handed to every component
// constructor. There is no package-level singleton.
type Config struct {
	Network string `mapstructure:"network"`
	RPCURL  string `mapstructure:"rpc_url"`

	// Wallet secrets (base58-encoded 64-byte private keys).
	AuthorityKey   string `mapstructure:"authority_key"`
	DistributorKey string `mapstructure:"distributor_key"`

	// Participant wallets and per-wallet amounts, in SOL.
	WalletCount        int     `mapstructure:"wallet_count"`
	BuyAmountSOL       float64 `mapstructure:"buy_amount_sol"`
	AuthorityBuySOL    float64 `mapstructure:"authority_buy_sol"`
	RetainAmountSOL    float64 `mapstructure:"retain_amount_sol"`
	FeeReserveSOL      float64 `mapstructure:"fee_reserve_sol"`
	DistributorBuffers float64 `mapstructure:"distributor_buffer_sol"`

	// Bundle submission.
	TipAmountSOL      float64  `mapstructure:"tip_amount_sol"`
	SlippageBps       uint64   `mapstructure:"slippage_bps"`
	RelayURLs         []string `mapstructure:"relay_urls"`
	DisableFallback   bool     `mapstructure:"disable_fallback"`
	MaxAttempts       int      `mapstructure:"max_attempts"`
	RetryDelayMs      int      `mapstructure:"retry_delay_ms"`
	ConfirmTimeoutSec int      `mapstructure:"confirm_timeout_sec"`

	// Compute budget applied to every built transaction.
	ComputeUnitLimit uint32 `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice uint64 `mapstructure:"compute_unit_price"` // micro-lamports

	// Token metadata for the create instruction.
	TokenName        string `mapstructure:"token_name"`
	TokenSymbol      string `mapstructure:"token_symbol"`
	TokenDescription string `mapstructure:"token_description"`
	TokenImagePath   string `mapstructure:"token_image_path"`
	TokenTwitter     string `mapstructure:"token_twitter"`
	TokenTelegram    string `mapstructure:"token_telegram"`
	TokenWebsite     string `mapstructure:"token_website"`
	MetadataEndpoint string `mapstructure:"metadata_endpoint"`

	// Session ledger directory.
	WalletsDir string `mapstructure:"wallets_dir"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`
}

const (
	DefaultNetwork           = "mainnet"
	DefaultWalletCount       = 3
	DefaultSlippageBps       = 500
	DefaultMaxAttempts       = 3
	DefaultRetryDelayMs      = 1000
	DefaultConfirmTimeoutSec = 60
	DefaultComputeUnitLimit  = 200_000
	DefaultComputeUnitPrice  = 5_000
	DefaultWalletsDir        = "wallets"
	DefaultMetadataEndpoint  = "https://pump.fun/api/ipfs"

	// The relay accepts at most five transactions per bundle: one create
	// transaction, one tip transaction and one per participant. Counts above
	// this are rejected here, before any funds move.
	MaxWalletCount = 3
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"network":             DefaultNetwork,
		"wallet_count":        DefaultWalletCount,
		"slippage_bps":        DefaultSlippageBps,
		"max_attempts":        DefaultMaxAttempts,
		"retry_delay_ms":      DefaultRetryDelayMs,
		"confirm_timeout_sec": DefaultConfirmTimeoutSec,
		"compute_unit_limit":  DefaultComputeUnitLimit,
		"compute_unit_price":  DefaultComputeUnitPrice,
		"wallets_dir":         DefaultWalletsDir,
		"metadata_endpoint":   DefaultMetadataEndpoint,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, Validate(&cfg)
}

// Validate checks every required field and reports the specific missing or
// invalid value. Precondition failures here are fatal: the caller fixes the
// input and re-runs.
func Validate(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("missing rpc_url in configuration")
	}
	if err := validateURL(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("invalid rpc_url %q: %w", cfg.RPCURL, err)
	}
	if cfg.AuthorityKey == "" {
		return errors.New("missing authority_key in configuration")
	}
	if cfg.DistributorKey == "" {
		return errors.New("missing distributor_key in configuration")
	}
	if cfg.AuthorityKey == cfg.DistributorKey {
		return errors.New("authority_key and distributor_key must be distinct wallets")
	}
	if cfg.WalletCount <= 0 {
		return fmt.Errorf("invalid wallet_count %d: must be positive", cfg.WalletCount)
	}
	if cfg.WalletCount > MaxWalletCount {
		return fmt.Errorf("invalid wallet_count %d: at most %d participant wallets per session", cfg.WalletCount, MaxWalletCount)
	}
	if cfg.BuyAmountSOL <= 0 {
		return fmt.Errorf("invalid buy_amount_sol %f: must be positive", cfg.BuyAmountSOL)
	}
	if cfg.AuthorityBuySOL < 0 {
		return fmt.Errorf("invalid authority_buy_sol %f: must not be negative", cfg.AuthorityBuySOL)
	}
	if cfg.RetainAmountSOL < 0 {
		return fmt.Errorf("invalid retain_amount_sol %f: must not be negative", cfg.RetainAmountSOL)
	}
	if cfg.FeeReserveSOL < 0 {
		return fmt.Errorf("invalid fee_reserve_sol %f: must not be negative", cfg.FeeReserveSOL)
	}
	if cfg.TipAmountSOL <= 0 {
		return fmt.Errorf("invalid tip_amount_sol %f: relay tips must be explicit and non-zero", cfg.TipAmountSOL)
	}
	if cfg.SlippageBps == 0 || cfg.SlippageBps > 10_000 {
		return fmt.Errorf("invalid slippage_bps %d: must be in (0, 10000]", cfg.SlippageBps)
	}
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("invalid max_attempts %d", cfg.MaxAttempts)
	}
	if cfg.RetryDelayMs <= 0 {
		return fmt.Errorf("invalid retry_delay_ms %d", cfg.RetryDelayMs)
	}
	if cfg.ConfirmTimeoutSec <= 0 {
		return fmt.Errorf("invalid confirm_timeout_sec %d", cfg.ConfirmTimeoutSec)
	}
	if cfg.TokenName == "" {
		return errors.New("missing token_name in configuration")
	}
	if cfg.TokenSymbol == "" {
		return errors.New("missing token_symbol in configuration")
	}
	for _, relayURL := range cfg.RelayURLs {
		if err := validateURL(relayURL, "http"); err != nil {
			return fmt.Errorf("invalid relay URL %q: %w", relayURL, err)
		}
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("PUMP_BUNDLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Secrets are preferably passed through the environment rather than the
	// config file.
	if envKey := v.GetString("AUTHORITY_KEY"); envKey != "" {
		cfg.AuthorityKey = envKey
	}
	if envKey := v.GetString("DISTRIBUTOR_KEY"); envKey != "" {
		cfg.DistributorKey = envKey
	}
	if envRPC := v.GetString("RPC_URL"); envRPC != "" {
		cfg.RPCURL = envRPC
	}
	if envRelays := v.GetString("RELAY_URLS"); envRelays != "" {
		relays := strings.Split(envRelays, ",")
		var cleanRelays []string
		for _, relay := range relays {
			clean := strings.TrimSpace(relay)
			if clean != "" {
				cleanRelays = append(cleanRelays, clean)
			}
		}
		if len(cleanRelays) > 0 {
			cfg.RelayURLs = cleanRelays
		}
	}

	// Numeric session parameters are overridable per-run without touching the
	// config file. Unmarshal does not see automatic env keys, so each one is
	// pulled explicitly.
	if envCount := v.GetString("WALLET_COUNT"); envCount != "" {
		count, err := strconv.Atoi(envCount)
		if err != nil {
			return fmt.Errorf("invalid PUMP_BUNDLER_WALLET_COUNT %q: %w", envCount, err)
		}
		cfg.WalletCount = count
	}
	if envBps := v.GetString("SLIPPAGE_BPS"); envBps != "" {
		bps, err := strconv.ParseUint(envBps, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PUMP_BUNDLER_SLIPPAGE_BPS %q: %w", envBps, err)
		}
		cfg.SlippageBps = bps
	}
	for _, override := range []struct {
		key string
		dst *float64
	}{
		{"BUY_AMOUNT_SOL", &cfg.BuyAmountSOL},
		{"TIP_AMOUNT_SOL", &cfg.TipAmountSOL},
		{"RETAIN_AMOUNT_SOL", &cfg.RetainAmountSOL},
	} {
		raw := v.GetString(override.key)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid PUMP_BUNDLER_%s %q: %w", override.key, raw, err)
		}
		*override.dst = value
	}
	return nil
}
