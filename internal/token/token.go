package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownToken is returned when a token id cannot be resolved.
	ErrUnknownToken = errors.New("unknown token")

	// ErrUnknownUnderlying indicates a derivative token whose declared
	// underlying token is missing from the registry. This is corrupted
	// registry data, not a runtime condition.
	ErrUnknownUnderlying = errors.New("derivative token references unknown underlying token")
)

// Kind discriminates plain assets from interest-bearing derivatives.
type Kind int

const (
	// Plain is a regular asset with no yield mechanics.
	Plain Kind = iota
	// Derivative is an interest-bearing token redeemable against an
	// underlying plain asset at a time-varying exchange rate.
	Derivative
)

// Token describes one asset. Underlying is resolved once at registry build
// time and is non-nil exactly when Kind == Derivative.
type Token struct {
	ID         string
	Ticker     string
	Address    common.Address
	Magnitude  uint8 // decimal precision, e.g. 18 for xDAI, 6 for USDC
	Kind       Kind
	Underlying *Token
	RateFeed   string // oracle reserve identifier, defaults to the contract address
	Delisted   bool
}

// ListOptions controls registry listing.
type ListOptions struct {
	IncludeDelisted bool
}

// Registry resolves tokens by id and lists them per base currency.
type Registry interface {
	Tokens(opts ListOptions) []*Token
	TokensFor(baseCurrency string, opts ListOptions) []*Token
	ByID(id string) (*Token, error)
}

// Spec is the raw declaration of one token before underlying resolution.
type Spec struct {
	ID           string
	Ticker       string
	Address      common.Address
	Magnitude    uint8
	UnderlyingID string // empty for plain assets
	RateFeed     string
	Delisted     bool
	BaseCurrency string
}

// StaticRegistry is an immutable in-memory registry built from declarations.
type StaticRegistry struct {
	byID   map[string]*Token
	byBase map[string][]*Token
	order  []*Token
}

// NewStaticRegistry resolves every declared underlying reference up front.
// A derivative declaring an unresolvable underlying id fails construction.
func NewStaticRegistry(specs []Spec) (*StaticRegistry, error) {
	r := &StaticRegistry{
		byID:   make(map[string]*Token, len(specs)),
		byBase: make(map[string][]*Token),
	}

	for _, s := range specs {
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate token id %q", s.ID)
		}
		feed := s.RateFeed
		if feed == "" {
			feed = s.Address.Hex()
		}
		tok := &Token{
			ID:        s.ID,
			Ticker:    s.Ticker,
			Address:   s.Address,
			Magnitude: s.Magnitude,
			Kind:      Plain,
			RateFeed:  feed,
			Delisted:  s.Delisted,
		}
		r.byID[s.ID] = tok
		r.byBase[s.BaseCurrency] = append(r.byBase[s.BaseCurrency], tok)
		r.order = append(r.order, tok)
	}

	// Second pass: resolve derivative -> underlying links.
	for _, s := range specs {
		if s.UnderlyingID == "" {
			continue
		}
		tok := r.byID[s.ID]
		under, ok := r.byID[s.UnderlyingID]
		if !ok {
			return nil, fmt.Errorf("token %q: %w (%q)", s.ID, ErrUnknownUnderlying, s.UnderlyingID)
		}
		tok.Kind = Derivative
		tok.Underlying = under
	}

	return r, nil
}

// Tokens returns every registered token in declaration order.
func (r *StaticRegistry) Tokens(opts ListOptions) []*Token {
	return filtered(r.order, opts)
}

// TokensFor returns tokens registered under the given base currency.
func (r *StaticRegistry) TokensFor(baseCurrency string, opts ListOptions) []*Token {
	return filtered(r.byBase[baseCurrency], opts)
}

// ByID resolves a single token.
func (r *StaticRegistry) ByID(id string) (*Token, error) {
	tok, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, id)
	}
	return tok, nil
}

func filtered(toks []*Token, opts ListOptions) []*Token {
	out := make([]*Token, 0, len(toks))
	for _, t := range toks {
		if t.Delisted && !opts.IncludeDelisted {
			continue
		}
		out = append(out, t)
	}
	return out
}
