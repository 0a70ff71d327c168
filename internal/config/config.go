// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Mode selects which signing path the backend serves.
type Mode string

const (
	ModeNonCustodial Mode = "non-custodial"
	ModeCustodial    Mode = "custodial"
)

type Config struct {
	Mode                 Mode   `mapstructure:"mode"`
	RPCURL               string `mapstructure:"rpc_url"`
	AggregatorURL        string `mapstructure:"aggregator_url"`
	AggregatorAPIKey     string `mapstructure:"aggregator_api_key"`
	AggregatorRPS        int    `mapstructure:"aggregator_rps"`
	BackendURL           string `mapstructure:"backend_url"`
	ListenAddr           string `mapstructure:"listen_addr"`
	ExplorerURL          string `mapstructure:"explorer_url"`
	SlippageBps          int    `mapstructure:"slippage_bps"`
	PriorityLevel        string `mapstructure:"priority_level"`
	MaxPriorityLamports  uint64 `mapstructure:"max_priority_lamports"`
	SendMaxRetries       uint   `mapstructure:"send_max_retries"`
	DebounceDelay        int    `mapstructure:"debounce_delay"`
	PollInterval         int    `mapstructure:"poll_interval"`
	QuoteTimeout         int    `mapstructure:"quote_timeout"`
	BuildTimeout         int    `mapstructure:"build_timeout"`
	ConfirmTimeout       int    `mapstructure:"confirm_timeout"`
	ConfirmPollInterval  int    `mapstructure:"confirm_poll_interval"`
	RegistrationTTL      int    `mapstructure:"registration_ttl"`
	RedisAddr            string `mapstructure:"redis_addr"`
	RedisPassword        string `mapstructure:"redis_password"`
	RedisDB              int    `mapstructure:"redis_db"`
	StorePath            string `mapstructure:"store_path"`
	CustodialKey         string `mapstructure:"custodial_key"`
	KeypairPath          string `mapstructure:"keypair_path"`
	DebugLogging         bool   `mapstructure:"debug_logging"`
	LogFile              string `mapstructure:"log_file"`
	NotificationDuration int    `mapstructure:"notification_duration"`
}

const (
	DefaultRPCURL               = "https://api.mainnet-beta.solana.com"
	DefaultAggregatorURL        = "https://api.jup.ag/swap/v1"
	DefaultBackendURL           = "http://localhost:8080/api"
	DefaultListenAddr           = ":8080"
	DefaultExplorerURL          = "https://solscan.io/tx/"
	DefaultAggregatorRPS        = 5
	DefaultSlippageBps          = 50
	DefaultPriorityLevel        = "high"
	DefaultMaxPriorityLamports  = 1_000_000
	DefaultSendMaxRetries       = 10
	DefaultDebounceDelay        = 500
	DefaultPollInterval         = 5000
	DefaultQuoteTimeout         = 10000
	DefaultBuildTimeout         = 15000
	DefaultConfirmTimeout       = 60000
	DefaultConfirmPollInterval  = 1000
	DefaultRegistrationTTL      = 600000
	DefaultNotificationDuration = 4000
	DefaultLogFile              = "checkout.log"
)

var validPriorityLevels = map[string]bool{
	"medium":   true,
	"high":     true,
	"veryHigh": true,
}

// LoadConfig reads the config file at path (optional), applies defaults and
// environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"mode":                  string(ModeNonCustodial),
		"rpc_url":               DefaultRPCURL,
		"aggregator_url":        DefaultAggregatorURL,
		"aggregator_rps":        DefaultAggregatorRPS,
		"backend_url":           DefaultBackendURL,
		"listen_addr":           DefaultListenAddr,
		"explorer_url":          DefaultExplorerURL,
		"slippage_bps":          DefaultSlippageBps,
		"priority_level":        DefaultPriorityLevel,
		"max_priority_lamports": DefaultMaxPriorityLamports,
		"send_max_retries":      DefaultSendMaxRetries,
		"debounce_delay":        DefaultDebounceDelay,
		"poll_interval":         DefaultPollInterval,
		"quote_timeout":         DefaultQuoteTimeout,
		"build_timeout":         DefaultBuildTimeout,
		"confirm_timeout":       DefaultConfirmTimeout,
		"confirm_poll_interval": DefaultConfirmPollInterval,
		"registration_ttl":      DefaultRegistrationTTL,
		"notification_duration": DefaultNotificationDuration,
		"log_file":              DefaultLogFile,
		"redis_addr":            "",
		"redis_password":        "",
		"redis_db":              0,
		"store_path":            "",
		"custodial_key":         "",
		"keypair_path":          "",
		"aggregator_api_key":    "",
		"debug_logging":         false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	loadEnvironmentVariables(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Имя переменной окружения для RPC совпадает с тем, что использует фронтенд.
	if rpcURL := os.Getenv("SOLANA_RPC_URL"); rpcURL != "" {
		cfg.RPCURL = rpcURL
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	switch cfg.Mode {
	case ModeNonCustodial:
	case ModeCustodial:
		if cfg.CustodialKey == "" {
			return errors.New("custodial mode requires custodial_key")
		}
	default:
		return errors.New("invalid mode")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	if err := validateURLWithCache(cfg.AggregatorURL, "http"); err != nil {
		return errors.New("invalid aggregator URL protocol")
	}
	if cfg.BackendURL != "" {
		if err := validateURLWithCache(cfg.BackendURL, "http"); err != nil {
			return errors.New("invalid backend URL protocol")
		}
	}
	if !validPriorityLevels[cfg.PriorityLevel] {
		return errors.New("invalid priority_level")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.SlippageBps <= 0 || cfg.SlippageBps > 10000 {
		return errors.New("invalid slippage_bps")
	}
	if cfg.DebounceDelay <= 0 {
		return errors.New("invalid debounce_delay")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval")
	}
	if cfg.QuoteTimeout <= 0 || cfg.BuildTimeout <= 0 {
		return errors.New("invalid request timeout")
	}
	if cfg.ConfirmTimeout <= 0 || cfg.ConfirmPollInterval <= 0 {
		return errors.New("invalid confirmation timing")
	}
	if cfg.AggregatorRPS <= 0 {
		return errors.New("invalid aggregator_rps")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) DebounceDuration() time.Duration     { return ms(c.DebounceDelay) }
func (c *Config) PollDuration() time.Duration         { return ms(c.PollInterval) }
func (c *Config) QuoteTimeoutDuration() time.Duration { return ms(c.QuoteTimeout) }
func (c *Config) BuildTimeoutDuration() time.Duration { return ms(c.BuildTimeout) }
func (c *Config) ConfirmTimeoutDuration() time.Duration {
	return ms(c.ConfirmTimeout)
}
func (c *Config) ConfirmPollDuration() time.Duration     { return ms(c.ConfirmPollInterval) }
func (c *Config) RegistrationTTLDuration() time.Duration { return ms(c.RegistrationTTL) }
func (c *Config) NotificationDurationValue() time.Duration {
	return ms(c.NotificationDuration)
}
