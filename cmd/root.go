package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "yieldfold",
	Short: "Interest-bearing token digester",
	Long: `yieldfold reconciles interest-bearing token holdings (aToken-style
derivatives) with their underlying assets so a wallet shows one consolidated
balance and history per asset. It fetches balances and transfer histories
over RPC, converts derivative holdings at oracle exchange rates, and persists
the digested results to PostgreSQL.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
