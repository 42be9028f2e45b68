package digest

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/openwalletd/yieldfold/internal/account"
	"github.com/openwalletd/yieldfold/internal/token"
)

const stubSuffix = "+stub"

// StubAccountID builds the deterministic id of a placeholder account for a
// derivative token paired to an existing underlying account.
func StubAccountID(underlyingAccountID, derivativeTokenID string) string {
	return fmt.Sprintf("%s+%s%s", underlyingAccountID, derivativeTokenID, stubSuffix)
}

// IsStub reports whether an account id names a placeholder account.
func IsStub(id string) bool {
	return strings.HasSuffix(id, stubSuffix)
}

// InjectPlaceholders appends a zero-balance derivative account for every
// pair that has an underlying account but no derivative account yet. The
// next sync round then fetches a real balance for it. When no placeholder is
// needed the input slice is returned unchanged, same identity, so callers
// can cheaply detect a no-op.
func InjectPlaceholders(registry token.Registry, baseCurrency string, accounts []*account.Account) ([]*account.Account, error) {
	pairs, err := InferPairs(registry, baseCurrency, accounts)
	if err != nil {
		return nil, err
	}

	var stubs []*account.Account
	for _, pair := range pairs {
		if pair.Underlying == nil || pair.Derivative != nil {
			continue
		}
		stubs = append(stubs, &account.Account{
			ID:        StubAccountID(pair.Underlying.ID, pair.DerivativeToken.ID),
			TokenID:   pair.DerivativeToken.ID,
			Balance:   new(big.Int),
			Spendable: new(big.Int),
			CreatedAt: time.Now().UTC(),
		})
	}

	if len(stubs) == 0 {
		return accounts, nil
	}
	// Map iteration order is random; keep appended stubs stable.
	sort.Slice(stubs, func(i, j int) bool { return stubs[i].ID < stubs[j].ID })

	out := make([]*account.Account, 0, len(accounts)+len(stubs))
	out = append(out, accounts...)
	out = append(out, stubs...)
	return out, nil
}
