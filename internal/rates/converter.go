package rates

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openwalletd/yieldfold/internal/token"
	"github.com/shopspring/decimal"
)

// historicalWindow bounds concurrent historical-rate lookups per account.
const historicalWindow = 3

// Entry is the cached rate information for one derivative token. Rate is
// magnitude-normalized: derivative smallest units times Rate yields
// underlying smallest units directly.
type Entry struct {
	Rate      decimal.Decimal `json:"rate"`
	SupplyAPY string          `json:"supplyAPY"`
}

// Snapshot maps derivative token id to its cached rate entry. Snapshots are
// immutable once published; Preload/Hydrate replace them wholesale.
type Snapshot map[string]Entry

// Converter caches oracle rates behind a fallback-to-zero interface. The
// snapshot is the only mutable state and is swapped atomically under the
// mutex, so readers always observe one consistent snapshot.
type Converter struct {
	registry token.Registry
	oracle   Oracle
	logger   *slog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// NewConverter creates a converter with an empty snapshot. Every lookup
// returns zero values until Preload or Hydrate runs.
func NewConverter(registry token.Registry, oracle Oracle, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		registry: registry,
		oracle:   oracle,
		logger:   logger,
		snap:     Snapshot{},
	}
}

// CurrentRate returns the snapshot rate for a derivative token, or zero when
// the snapshot has no entry. Never fails.
func (c *Converter) CurrentRate(tok *token.Token) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap[tok.ID].Rate
}

// CurrentSupplyAPY returns the snapshot supply APY for a derivative token,
// or the empty string when absent.
func (c *Converter) CurrentSupplyAPY(tok *token.Token) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap[tok.ID].SupplyAPY
}

// HistoricalRates returns one magnitude-normalized rate per input date, in
// input order. Lookups run with a small bounded window; a failed lookup
// degrades to a zero rate for that date.
func (c *Converter) HistoricalRates(ctx context.Context, tok *token.Token, dates []time.Time) []decimal.Decimal {
	out := make([]decimal.Decimal, len(dates))
	if tok.Underlying == nil {
		return out
	}
	shift := magnitudeShift(tok)

	var wg sync.WaitGroup
	sem := make(chan struct{}, historicalWindow)

	for i, date := range dates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, date time.Time) {
			defer wg.Done()
			defer func() { <-sem }()

			rate, err := c.oracle.FetchHistoricalRate(ctx, tok, date)
			if err != nil {
				c.logger.Warn("historical rate lookup failed, using zero",
					"token", tok.ID,
					"date", date.Format(time.RFC3339),
					"error", err,
				)
				out[i] = decimal.Zero
				return
			}
			out[i] = rate.Mul(shift)
		}(i, date)
	}
	wg.Wait()

	return out
}

// Preload refreshes the snapshot from the oracle for every registered
// derivative token, publishes it, and returns it. Per-token oracle failures
// degrade to zero entries rather than failing the preload.
func (c *Converter) Preload(ctx context.Context) Snapshot {
	snap := Snapshot{}

	for _, tok := range c.registry.Tokens(token.ListOptions{IncludeDelisted: true}) {
		if tok.Kind != token.Derivative {
			continue
		}

		quote, err := c.oracle.FetchCurrentRate(ctx, tok)
		if err != nil {
			c.logger.Warn("current rate fetch failed, using zero",
				"token", tok.ID,
				"error", err,
			)
			snap[tok.ID] = Entry{Rate: decimal.Zero}
			continue
		}

		snap[tok.ID] = Entry{
			Rate:      quote.Rate.Mul(magnitudeShift(tok)),
			SupplyAPY: quote.SupplyAPY,
		}
	}

	c.Hydrate(snap)
	return snap
}

// Hydrate replaces the snapshot with an externally supplied one, typically
// restored from a prior Preload. No network access.
func (c *Converter) Hydrate(snap Snapshot) {
	if snap == nil {
		snap = Snapshot{}
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

// magnitudeShift folds the decimal-precision difference between a derivative
// token and its underlying into the rate, once, at the source.
func magnitudeShift(tok *token.Token) decimal.Decimal {
	return decimal.New(1, int32(tok.Underlying.Magnitude)-int32(tok.Magnitude))
}
