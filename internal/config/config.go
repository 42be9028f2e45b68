package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/openwalletd/yieldfold/internal/token"
)

// Config represents the application configuration
type Config struct {
	RPCUrl         string        `mapstructure:"rpc_url" validate:"omitempty,url"`
	RPCUrls        []string      `mapstructure:"rpc_urls" validate:"omitempty,min=1,dive,url"`
	Wallets        []string      `mapstructure:"wallets" validate:"required,min=1,dive,eth_addr"`
	BaseCurrency   string        `mapstructure:"base_currency" validate:"required,min=1,max=50"`
	OracleURL      string        `mapstructure:"oracle_url" validate:"required,url"`
	Tokens         []TokenConfig `mapstructure:"tokens" validate:"required,min=1,dive"`
	Interval       string        `mapstructure:"interval" validate:"omitempty,duration"`
	LogLevel       string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPPort       int           `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
	Timezone       string        `mapstructure:"timezone"`
	RunImmediately bool          `mapstructure:"run_immediately"`
}

// TokenConfig represents a single token configuration. A token with a
// non-empty underlying label is an interest-bearing derivative of that
// token.
type TokenConfig struct {
	Label      string `mapstructure:"label" validate:"required,min=1,max=100"`
	Address    string `mapstructure:"address" validate:"required,eth_addr"`
	Decimals   uint8  `mapstructure:"decimals" validate:"max=36"`
	Underlying string `mapstructure:"underlying" validate:"omitempty,min=1,max=100"`
	RateFeed   string `mapstructure:"rate_feed"`
	Delisted   bool   `mapstructure:"delisted"`
}

// Normalize folds the single rpc_url form into rpc_urls.
func (c *Config) Normalize() error {
	if len(c.RPCUrls) == 0 {
		if c.RPCUrl == "" {
			return fmt.Errorf("either rpc_url or rpc_urls must be set")
		}
		c.RPCUrls = []string{c.RPCUrl}
	}
	c.RPCUrl = ""
	return nil
}

// GetTimezone parses the configured timezone, defaulting to UTC.
func (c *Config) GetTimezone() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShouldRunImmediately reports whether daemon mode executes once on start.
func (c *Config) ShouldRunImmediately() bool {
	return c.RunImmediately
}

// TokenSpecs converts the token declarations into registry specs. Underlying
// references are resolved by the registry itself.
func (c *Config) TokenSpecs() []token.Spec {
	specs := make([]token.Spec, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		specs = append(specs, token.Spec{
			ID:           t.Label,
			Ticker:       t.Label,
			Address:      common.HexToAddress(t.Address),
			Magnitude:    t.Decimals,
			UnderlyingID: t.Underlying,
			RateFeed:     t.RateFeed,
			Delisted:     t.Delisted,
			BaseCurrency: c.BaseCurrency,
		})
	}
	return specs
}

// ethAddressValidator validates Ethereum addresses
func ethAddressValidator(fl validator.FieldLevel) bool {
	return common.IsHexAddress(fl.Field().String())
}

// durationValidator validates duration strings
func durationValidator(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true // empty is valid (run once mode)
	}
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("eth_addr", ethAddressValidator)
	validate.RegisterValidation("duration", durationValidator)
	return validate
}
