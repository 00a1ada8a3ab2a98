package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "WALLET"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Provider holds the options recognised by the provider shim.
type Provider struct {
	Name                   string `validate:"required"`
	Icon                   string
	RDNS                   string `validate:"required"`
	BridgeName             string `validate:"required"`
	InitialSelectedAddress string `validate:"omitempty,eth_addr"`
	InitialChainID         string `validate:"omitempty,hexadecimal"`
	AutoInject             bool
	ForceReplace           bool
	EnableLegacyWeb3       bool
	EnableEIP6963          bool
}

// Bridge selects how the provider reaches its host.
type Bridge struct {
	// Command starts a host process speaking framed JSON on stdio.
	Command string
	// URL points at a host serving the bridge over HTTP. Takes precedence over Command.
	URL     string        `validate:"omitempty,url"`
	Timeout time.Duration `validate:"gte=0"`
}

// Host configures the development host. A non-empty KeystorePath replaces
// Mnemonic with the mnemonic stored in that encrypted keystore file.
type Host struct {
	Mnemonic         string `validate:"required_without=KeystorePath"`
	Passphrase       string
	KeystorePath     string
	KeystorePassword string
	AccountCount     int      `validate:"gte=0"`
	ChainID          string   `validate:"omitempty,hexadecimal"`
	UpstreamURLs     []string `validate:"dive,url"`
	FixturesPath     string
	ListenAddress    string `validate:"omitempty,hostname_port"`
	AutoApprove      bool
}

// Logger configures the global zerolog logger.
type Logger struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	PrettyPrintConsole bool
}

// Service is the complete configuration of the binary.
type Service struct {
	Provider Provider
	Bridge   Bridge
	Host     Host
	Logger   Logger
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider.name", "Chapool Wallet")
	v.SetDefault("provider.icon", "")
	v.SetDefault("provider.rdns", "com.chapool.wallet")
	v.SetDefault("provider.bridge_name", "walletBridge")
	v.SetDefault("provider.initial_selected_address", "")
	v.SetDefault("provider.initial_chain_id", "")
	v.SetDefault("provider.auto_inject", true)
	v.SetDefault("provider.force_replace", false)
	v.SetDefault("provider.enable_legacy_web3", true)
	v.SetDefault("provider.enable_eip6963", true)

	v.SetDefault("bridge.command", "")
	v.SetDefault("bridge.url", "")
	v.SetDefault("bridge.timeout", 0)

	//nolint:dupword // Standard BIP39 test mnemonic
	v.SetDefault("host.mnemonic", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	v.SetDefault("host.passphrase", "")
	v.SetDefault("host.keystore_path", "")
	v.SetDefault("host.keystore_password", "")
	v.SetDefault("host.account_count", 1)
	v.SetDefault("host.chain_id", "0x1")
	v.SetDefault("host.upstream_urls", "")
	v.SetDefault("host.fixtures_path", "")
	v.SetDefault("host.listen_address", "127.0.0.1:8546")
	v.SetDefault("host.auto_approve", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.request_level", "debug")
	v.SetDefault("logger.pretty_print_console", false)

	return v
}

// DefaultServiceConfigFromEnv builds the configuration from WALLET_* environment
// variables on top of the defaults.
func DefaultServiceConfigFromEnv() Service {
	return fromViper(newViper())
}

// Load reads an optional config file (any format viper understands) and applies
// environment overrides on top.
func Load(path string) (Service, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Service{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Service{}, err
	}

	return cfg, nil
}

// Validate checks the struct tags of the whole configuration.
func (s Service) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// LoadDotEnv loads the given .env files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := gotenv.Load(file); err != nil {
			return errors.Wrapf(err, "failed to load env file %s", file)
		}
	}
	return nil
}

func fromViper(v *viper.Viper) Service {
	return Service{
		Provider: Provider{
			Name:                   v.GetString("provider.name"),
			Icon:                   v.GetString("provider.icon"),
			RDNS:                   v.GetString("provider.rdns"),
			BridgeName:             v.GetString("provider.bridge_name"),
			InitialSelectedAddress: v.GetString("provider.initial_selected_address"),
			InitialChainID:         v.GetString("provider.initial_chain_id"),
			AutoInject:             v.GetBool("provider.auto_inject"),
			ForceReplace:           v.GetBool("provider.force_replace"),
			EnableLegacyWeb3:       v.GetBool("provider.enable_legacy_web3"),
			EnableEIP6963:          v.GetBool("provider.enable_eip6963"),
		},
		Bridge: Bridge{
			Command: v.GetString("bridge.command"),
			URL:     v.GetString("bridge.url"),
			Timeout: v.GetDuration("bridge.timeout"),
		},
		Host: Host{
			Mnemonic:         v.GetString("host.mnemonic"),
			Passphrase:       v.GetString("host.passphrase"),
			KeystorePath:     v.GetString("host.keystore_path"),
			KeystorePassword: v.GetString("host.keystore_password"),
			AccountCount:     v.GetInt("host.account_count"),
			ChainID:          v.GetString("host.chain_id"),
			UpstreamURLs:     listValue(v, "host.upstream_urls"),
			FixturesPath:     v.GetString("host.fixtures_path"),
			ListenAddress:    v.GetString("host.listen_address"),
			AutoApprove:      v.GetBool("host.auto_approve"),
		},
		Logger: Logger{
			Level:              parseLevel(v.GetString("logger.level"), zerolog.InfoLevel),
			RequestLevel:       parseLevel(v.GetString("logger.request_level"), zerolog.DebugLevel),
			PrettyPrintConsole: v.GetBool("logger.pretty_print_console"),
		},
	}
}

// listValue accepts both a list from a config file and a comma separated string
// from the environment.
func listValue(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return splitList(raw)
	}
	return v.GetStringSlice(key)
}

// splitList parses a comma separated list, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}

	return result
}

func parseLevel(raw string, fallback zerolog.Level) zerolog.Level {
	level, err := zerolog.ParseLevel(raw)
	if err != nil || raw == "" {
		return fallback
	}
	return level
}
