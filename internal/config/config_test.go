package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		wantError bool
		check     func(*Config)
	}{
		{
			name: "single rpc_url converts to rpc_urls",
			cfg: &Config{
				RPCUrl:  "https://rpc1.example.com",
				RPCUrls: nil,
			},
			wantError: false,
			check: func(c *Config) {
				assert.Empty(t, c.RPCUrl)
				assert.Equal(t, []string{"https://rpc1.example.com"}, c.RPCUrls)
			},
		},
		{
			name: "rpc_urls takes precedence over rpc_url",
			cfg: &Config{
				RPCUrl:  "https://rpc1.example.com",
				RPCUrls: []string{"https://rpc2.example.com", "https://rpc3.example.com"},
			},
			wantError: false,
			check: func(c *Config) {
				assert.Empty(t, c.RPCUrl)
				assert.Equal(t, []string{"https://rpc2.example.com", "https://rpc3.example.com"}, c.RPCUrls)
			},
		},
		{
			name: "both empty rpc_url and rpc_urls returns error",
			cfg: &Config{
				RPCUrl:  "",
				RPCUrls: nil,
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Normalize()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				if tt.check != nil {
					tt.check(tt.cfg)
				}
			}
		})
	}
}

func TestConfigGetTimezone(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     string
	}{
		{"empty defaults to UTC", "", "UTC"},
		{"valid timezone", "Europe/Brussels", "Europe/Brussels"},
		{"invalid falls back to UTC", "Not/AZone", "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Timezone: tt.timezone}
			assert.Equal(t, tt.want, cfg.GetTimezone().String())
		})
	}
}

func TestTokenSpecs(t *testing.T) {
	cfg := &Config{
		BaseCurrency: "gnosis",
		Tokens: []TokenConfig{
			{Label: "WXDAI", Address: "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d", Decimals: 18},
			{Label: "armmWXDAI", Address: "0x0cA4f5554Dd9Da6217d62D8df2816c82bba4157b", Decimals: 18, Underlying: "WXDAI", RateFeed: "reserve-wxdai"},
		},
	}

	specs := cfg.TokenSpecs()
	require.Len(t, specs, 2)

	assert.Equal(t, "WXDAI", specs[0].ID)
	assert.Empty(t, specs[0].UnderlyingID)
	assert.Equal(t, "gnosis", specs[0].BaseCurrency)

	assert.Equal(t, "armmWXDAI", specs[1].ID)
	assert.Equal(t, "WXDAI", specs[1].UnderlyingID)
	assert.Equal(t, "reserve-wxdai", specs[1].RateFeed)
	assert.Equal(t, uint8(18), specs[1].Magnitude)
}

func TestValidatorEthAddr(t *testing.T) {
	validate := NewValidator()

	type holder struct {
		Addr string `validate:"eth_addr"`
	}

	assert.NoError(t, validate.Struct(holder{Addr: "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d"}))
	assert.Error(t, validate.Struct(holder{Addr: "not-an-address"}))
	assert.Error(t, validate.Struct(holder{Addr: "0x123"}))
}

func TestValidatorDuration(t *testing.T) {
	validate := NewValidator()

	type holder struct {
		Interval string `validate:"duration"`
	}

	assert.NoError(t, validate.Struct(holder{Interval: ""}))
	assert.NoError(t, validate.Struct(holder{Interval: "5m"}))
	assert.NoError(t, validate.Struct(holder{Interval: "1h30m"}))
	assert.Error(t, validate.Struct(holder{Interval: "every day"}))
}

func TestValidatorFullConfig(t *testing.T) {
	validate := NewValidator()

	valid := Config{
		RPCUrls:      []string{"https://rpc.gnosischain.com"},
		Wallets:      []string{"0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d"},
		BaseCurrency: "gnosis",
		OracleURL:    "https://rates.example.com/api",
		Tokens: []TokenConfig{
			{Label: "WXDAI", Address: "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d", Decimals: 18},
		},
		Interval: "15m",
		LogLevel: "info",
		HTTPPort: 8080,
	}
	assert.NoError(t, validate.Struct(&valid))

	missingOracle := valid
	missingOracle.OracleURL = ""
	assert.Error(t, validate.Struct(&missingOracle))

	badWallet := valid
	badWallet.Wallets = []string{"nope"}
	assert.Error(t, validate.Struct(&badWallet))

	badPort := valid
	badPort.HTTPPort = 80
	assert.Error(t, validate.Struct(&badPort))
}
