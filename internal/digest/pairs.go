package digest

import (
	"fmt"

	"github.com/openwalletd/yieldfold/internal/account"
	"github.com/openwalletd/yieldfold/internal/token"
)

// Pair links a derivative token with its underlying token and whichever of
// the two accounts exist in a given account list. Pairs are rebuilt on every
// call and never persisted.
type Pair struct {
	UnderlyingToken *token.Token
	DerivativeToken *token.Token
	Underlying      *account.Account // nil when the user has no underlying account
	Derivative      *account.Account // nil when the user has no derivative account
}

// InferPairs scans an account list for derivative/underlying pairs among the
// derivative tokens registered under baseCurrency, keyed by underlying token
// id. Pairs with neither account present are omitted. Pure, no side effects.
func InferPairs(registry token.Registry, baseCurrency string, accounts []*account.Account) (map[string]Pair, error) {
	byToken := make(map[string]*account.Account, len(accounts))
	for _, acct := range accounts {
		if _, dup := byToken[acct.TokenID]; !dup {
			byToken[acct.TokenID] = acct
		}
	}

	pairs := make(map[string]Pair)
	for _, tok := range registry.TokensFor(baseCurrency, token.ListOptions{IncludeDelisted: true}) {
		if tok.Kind != token.Derivative {
			continue
		}
		if tok.Underlying == nil {
			return nil, fmt.Errorf("token %q: %w", tok.ID, token.ErrUnknownUnderlying)
		}

		underlying := byToken[tok.Underlying.ID]
		derivative := byToken[tok.ID]
		if underlying == nil && derivative == nil {
			continue
		}

		pairs[tok.Underlying.ID] = Pair{
			UnderlyingToken: tok.Underlying,
			DerivativeToken: tok,
			Underlying:      underlying,
			Derivative:      derivative,
		}
	}

	return pairs, nil
}
