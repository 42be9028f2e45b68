package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/openwalletd/yieldfold/internal/account"
	"github.com/openwalletd/yieldfold/internal/chain"
	"github.com/openwalletd/yieldfold/internal/config"
	"github.com/openwalletd/yieldfold/internal/digest"
	"github.com/openwalletd/yieldfold/internal/health"
	"github.com/openwalletd/yieldfold/internal/logger"
	"github.com/openwalletd/yieldfold/internal/rates"
	"github.com/openwalletd/yieldfold/internal/scheduler"
	"github.com/openwalletd/yieldfold/internal/storage"
	"github.com/openwalletd/yieldfold/internal/token"
	"github.com/spf13/cobra"
)

var (
	interval string
	once     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the yield-token digester",
	Long:  `Fetch balances and histories over RPC, fold derivative holdings into their underlying accounts at oracle rates, and persist the digested results to PostgreSQL.`,
	RunE:  runDigester,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&interval, "interval", "", "run interval as a duration (5m, 1h) - empty for one-time run")
	runCmd.Flags().BoolVar(&once, "once", false, "run once and exit (default)")
}

// pipeline bundles everything one refresh run needs.
type pipeline struct {
	cfg       *config.Config
	registry  token.Registry
	client    *chain.Client
	converter *rates.Converter
	merger    *digest.Merger
	store     *storage.Store
}

func runDigester(cmd *cobra.Command, args []string) error {
	// Setup logger (log-level from global flag)
	logger.Setup(logLevel)

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		slog.Info("Signal received, graceful shutdown", "signal", sig)
		cancel()
	}()

	// Load config
	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}

	// Override log level if set in config
	if cfg.LogLevel != "" {
		logger.Setup(cfg.LogLevel)
	}

	// Use interval from flag if provided, otherwise from config
	runInterval := interval
	if runInterval == "" && cfg.Interval != "" {
		runInterval = cfg.Interval
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"wallets", len(cfg.Wallets),
		"tokens", len(cfg.Tokens),
		"base_currency", cfg.BaseCurrency,
		"interval", runInterval,
	)

	// Resolve the token registry; a derivative declaring an unknown
	// underlying is a configuration bug and stops the process here.
	registry, err := token.NewStaticRegistry(cfg.TokenSpecs())
	if err != nil {
		slog.Error("Token registry error", "error", err)
		return err
	}

	// Connect to PostgreSQL
	store, err := storage.NewStore(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		return err
	}
	defer store.Close()
	slog.Info("PostgreSQL connection established")

	// Connect to blockchain with failover support
	client, err := chain.NewClient(cfg.RPCUrls)
	if err != nil {
		slog.Error("Failed to connect to RPC", "error", err)
		return err
	}
	defer client.Close()

	// Rate converter, hydrated from the last persisted snapshot so rates
	// are available before the first oracle round completes.
	oracle := rates.NewHTTPOracle(cfg.OracleURL)
	converter := rates.NewConverter(registry, oracle, slog.Default())
	if snap, err := store.LatestSnapshot(ctx); err != nil {
		slog.Warn("Could not restore rate snapshot", "error", err)
	} else if snap != nil {
		converter.Hydrate(snap)
		slog.Info("Rate snapshot restored", "entries", len(snap))
	}

	p := &pipeline{
		cfg:       cfg,
		registry:  registry,
		client:    client,
		converter: converter,
		merger:    digest.NewMerger(registry, converter, slog.Default()),
		store:     store,
	}

	// Run mode: one-time or daemon
	if runInterval == "" || once {
		return p.refresh(ctx)
	}

	runEvery, err := time.ParseDuration(runInterval)
	if err != nil {
		slog.Error("Invalid interval", "interval", runInterval, "error", err)
		return fmt.Errorf("invalid interval: %w", err)
	}

	slog.Info("Starting daemon mode",
		"interval", runEvery.String(),
		"timezone", cfg.GetTimezone().String(),
		"run_immediately", cfg.ShouldRunImmediately())

	var healthChecker *health.Checker
	jobFunc := func(jobCtx context.Context) error {
		err := p.refresh(jobCtx)
		if healthChecker != nil {
			healthChecker.UpdateLastRun(err == nil)
		}
		return err
	}

	sched, err := scheduler.NewScheduler(ctx, scheduler.Config{
		Interval:       runEvery,
		Timezone:       cfg.GetTimezone(),
		RunImmediately: cfg.ShouldRunImmediately(),
		Logger:         slog.Default(),
	}, jobFunc)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return fmt.Errorf("scheduler creation failed: %w", err)
	}
	defer sched.Stop()

	healthChecker = health.NewChecker(store, client, cfg.OracleURL, runEvery)

	httpPort := cfg.HTTPPort
	if httpPort == 0 {
		httpPort = 8080
	}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", httpPort),
		Handler: healthChecker.Router(),
	}

	go func() {
		slog.Info("Health check server starting", "port", httpPort, "endpoint", "/health")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server error", "error", err)
		}
	}()

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Health server shutdown error", "error", err)
		}
	}()

	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("Shutdown requested, stopping daemon")
	return nil
}

// refresh is one full round: preload rates, then per wallet seed + prepare,
// fetch on-chain state, digest, and persist the consolidated balances.
func (p *pipeline) refresh(ctx context.Context) error {
	snap := p.converter.Preload(ctx)
	slog.Info("Rate snapshot refreshed", "entries", len(snap))
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		slog.Error("Failed to persist rate snapshot", "error", err)
	}

	for _, walletAddr := range p.cfg.Wallets {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown requested, stopping processing")
			return ctx.Err()
		default:
		}

		wallet := common.HexToAddress(walletAddr)
		slog.Info("Processing wallet", "wallet", wallet.Hex())

		if err := p.refreshWallet(ctx, wallet); err != nil {
			slog.Error("Wallet processing failed", "wallet", wallet.Hex(), "error", err)
			continue
		}
	}

	slog.Info("Processing completed successfully")
	return nil
}

func (p *pipeline) refreshWallet(ctx context.Context, wallet common.Address) error {
	seed := chain.SeedAccounts(wallet, p.registry, p.cfg.BaseCurrency)

	prepared, err := p.merger.PrepareAccounts(p.cfg.BaseCurrency, seed)
	if err != nil {
		return fmt.Errorf("prepare accounts: %w", err)
	}

	fetched, err := p.client.FetchAccounts(ctx, wallet, p.registry, prepared)
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}

	digested, err := p.merger.DigestAccounts(ctx, p.cfg.BaseCurrency, fetched)
	if err != nil {
		return fmt.Errorf("digest accounts: %w", err)
	}

	rows := p.balanceRows(wallet, digested)
	if len(rows) > 0 {
		if err := p.store.BatchInsertBalances(ctx, rows); err != nil {
			return fmt.Errorf("persist balances: %w", err)
		}
		slog.Info("Records inserted successfully",
			"wallet", wallet.Hex(),
			"count", len(rows),
		)
	}
	return nil
}

// balanceRows flattens digested accounts into storage rows, annotated with
// the current rate of the paired derivative token when one exists.
func (p *pipeline) balanceRows(wallet common.Address, accounts []*account.Account) []storage.DigestedBalance {
	derivativeFor := make(map[string]*token.Token)
	for _, tok := range p.registry.TokensFor(p.cfg.BaseCurrency, token.ListOptions{IncludeDelisted: true}) {
		if tok.Kind == token.Derivative {
			derivativeFor[tok.Underlying.ID] = tok
		}
	}

	now := time.Now().UTC()
	rows := make([]storage.DigestedBalance, 0, len(accounts))
	for _, acct := range accounts {
		tok, err := p.registry.ByID(acct.TokenID)
		if err != nil {
			continue
		}

		row := storage.DigestedBalance{
			QueriedAt:    now,
			Wallet:       wallet.Hex(),
			TokenID:      tok.ID,
			Decimals:     tok.Magnitude,
			RawBalance:   acct.Balance,
			RawSpendable: acct.Spendable,
			Balance:      chain.HumanBalance(acct.Balance, tok.Magnitude),
		}
		if deriv, ok := derivativeFor[tok.ID]; ok {
			row.Rate = p.converter.CurrentRate(deriv)
			row.SupplyAPY = p.converter.CurrentSupplyAPY(deriv)
		}

		slog.Debug("Digested balance",
			"wallet", wallet.Hex(),
			"token", tok.ID,
			"balance", row.Balance,
			"rate", row.Rate.String(),
		)
		rows = append(rows, row)
	}
	return rows
}
