package digest

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/openwalletd/yieldfold/internal/account"
	"github.com/openwalletd/yieldfold/internal/rates"
	"github.com/openwalletd/yieldfold/internal/token"
	"github.com/shopspring/decimal"
)

// digestWindow bounds how many accounts are merged concurrently. Merges are
// independent; the window only overlaps oracle latency.
const digestWindow = 2

// Merger folds derivative accounts into their underlying accounts so the
// wallet presents one consolidated balance and history per asset.
type Merger struct {
	registry token.Registry
	rates    *rates.Converter
	logger   *slog.Logger
}

// NewMerger wires a merger over a token registry and a rate converter.
func NewMerger(registry token.Registry, converter *rates.Converter, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		registry: registry,
		rates:    converter,
		logger:   logger,
	}
}

// PrepareAccounts injects placeholder derivative accounts before a sync
// round so the balance fetch discovers derivative holdings. Synchronous and
// side-effect-free; returns the input unchanged when nothing is missing.
func (m *Merger) PrepareAccounts(baseCurrency string, accounts []*account.Account) ([]*account.Account, error) {
	return InjectPlaceholders(m.registry, baseCurrency, accounts)
}

// DigestAccounts reconciles a post-sync account list. Per account it either
// drops it (derivative subsumed by its underlying), merges it (underlying
// side of a pair), or passes it through. Input order is preserved for the
// surviving entries.
func (m *Merger) DigestAccounts(ctx context.Context, baseCurrency string, accounts []*account.Account) ([]*account.Account, error) {
	pairs, err := InferPairs(m.registry, baseCurrency, accounts)
	if err != nil {
		return nil, err
	}

	results := make([]*account.Account, len(accounts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, digestWindow)

	for i, acct := range accounts {
		tok, lookupErr := m.registry.ByID(acct.TokenID)
		if lookupErr != nil {
			// Accounts for tokens the registry does not know pass through.
			results[i] = acct
			continue
		}

		switch {
		case tok.Kind == token.Derivative:
			results[i] = m.digestDerivative(acct, tok, pairs)

		case isUnderlyingOf(acct, tok, pairs):
			pair := pairs[tok.ID]
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, acct *account.Account, pair Pair) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = m.merge(ctx, acct, pair)
			}(i, acct, pair)

		default:
			results[i] = acct
		}
	}
	wg.Wait()

	out := make([]*account.Account, 0, len(accounts))
	for _, acct := range results {
		if acct != nil {
			out = append(out, acct)
		}
	}
	return out, nil
}

// digestDerivative decides the fate of a derivative account: dropped when
// its underlying account is visible (the merge subsumes it), dropped when it
// is a still-empty placeholder, passed through otherwise.
func (m *Merger) digestDerivative(acct *account.Account, tok *token.Token, pairs map[string]Pair) *account.Account {
	if tok.Underlying == nil {
		return acct
	}
	pair, ok := pairs[tok.Underlying.ID]
	if ok && pair.Underlying != nil {
		return nil
	}
	if IsStub(acct.ID) && isEmpty(acct) {
		return nil
	}
	return acct
}

// merge folds the paired derivative account into a copy of the underlying
// account. Balance gains the converted derivative balance; spendable stays
// at the pre-merge underlying balance since derivative holdings need a
// redeem before they can be spent.
func (m *Merger) merge(ctx context.Context, acct *account.Account, pair Pair) *account.Account {
	out := acct.Clone()
	deriv := pair.Derivative

	rate := m.rates.CurrentRate(pair.DerivativeToken)
	converted := decimal.NewFromBigInt(deriv.Balance, 0).Mul(rate).Truncate(0).BigInt()

	out.Balance = new(big.Int).Add(acct.Balance, converted)
	out.Spendable = new(big.Int).Set(acct.Balance)

	remapped := RemapOperations(out.ID, deriv, m.operationRates(ctx, pair.DerivativeToken, deriv.Operations))
	out.Operations = account.MergeOperations(acct.Operations, remapped)

	m.logger.Debug("merged derivative account",
		"account", acct.ID,
		"derivative", deriv.ID,
		"rate", rate.String(),
		"converted", converted.String(),
		"operations", len(remapped),
	)
	return out
}

// operationRates fetches historical rates for every distinct operation date
// and aligns them 1:1 with the operation list.
func (m *Merger) operationRates(ctx context.Context, tok *token.Token, ops []account.Operation) []decimal.Decimal {
	distinct := make([]time.Time, 0, len(ops))
	seen := make(map[int64]struct{}, len(ops))
	for _, op := range ops {
		key := op.Date.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		distinct = append(distinct, op.Date)
	}

	fetched := m.rates.HistoricalRates(ctx, tok, distinct)
	byDate := make(map[int64]decimal.Decimal, len(distinct))
	for i, date := range distinct {
		byDate[date.UnixNano()] = fetched[i]
	}

	aligned := make([]decimal.Decimal, len(ops))
	for i, op := range ops {
		aligned[i] = byDate[op.Date.UnixNano()]
	}
	return aligned
}

func isUnderlyingOf(acct *account.Account, tok *token.Token, pairs map[string]Pair) bool {
	pair, ok := pairs[tok.ID]
	return ok && pair.Underlying != nil && pair.Underlying.ID == acct.ID && pair.Derivative != nil
}

func isEmpty(acct *account.Account) bool {
	return (acct.Balance == nil || acct.Balance.Sign() == 0) && len(acct.Operations) == 0 && len(acct.Pending) == 0
}
