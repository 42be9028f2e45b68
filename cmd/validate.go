package cmd

import (
	"log/slog"

	"github.com/openwalletd/yieldfold/internal/config"
	"github.com/openwalletd/yieldfold/internal/logger"
	"github.com/openwalletd/yieldfold/internal/token"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file syntax, values, and token pair declarations without running the application.`,
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger.Setup(logLevel)

	// Load config
	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	// Resolving the registry catches derivative tokens declaring an
	// unknown underlying.
	registry, err := token.NewStaticRegistry(cfg.TokenSpecs())
	if err != nil {
		slog.Error("Token registry validation failed", "error", err)
		return err
	}

	derivatives := 0
	for _, tok := range registry.Tokens(token.ListOptions{IncludeDelisted: true}) {
		if tok.Kind == token.Derivative {
			derivatives++
		}
	}

	slog.Info("✓ Configuration valid",
		"wallets", len(cfg.Wallets),
		"tokens", len(cfg.Tokens),
		"derivatives", derivatives,
		"oracle_url", cfg.OracleURL,
		"interval", cfg.Interval,
		"log_level", cfg.LogLevel,
		"database_url_set", databaseURL != "",
	)

	return nil
}
