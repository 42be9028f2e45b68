package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openwalletd/yieldfold/internal/rates"
)

// Store manages PostgreSQL operations
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL store with connection pooling
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Tune connection pool
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	// Rates are stored as NUMERIC and scanned as shopspring decimals.
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// BatchInsertBalances inserts digested balance rows using pgx.Batch
func (s *Store) BatchInsertBalances(ctx context.Context, balances []DigestedBalance) error {
	if len(balances) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, bal := range balances {
		batch.Queue(`
			INSERT INTO digested_balances
			(queried_at, wallet, token_id, decimals, raw_balance, raw_spendable, balance, rate, supply_apy)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			bal.QueriedAt,
			bal.Wallet,
			bal.TokenID,
			bal.Decimals,
			bal.RawBalance.String(),
			bal.RawSpendable.String(),
			bal.Balance,
			bal.Rate,
			bal.SupplyAPY,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range balances {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}

	return nil
}

// SaveSnapshot persists a rate snapshot so a later process can hydrate from
// it without touching the oracle.
func (s *Store) SaveSnapshot(ctx context.Context, snap rates.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rate_snapshots (taken_at, payload) VALUES ($1, $2)`,
		time.Now().UTC(), payload)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot restores the most recent persisted rate snapshot. Returns
// a nil snapshot without error when none exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (rates.Snapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload FROM rate_snapshots ORDER BY taken_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap rates.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Ping verifies the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
