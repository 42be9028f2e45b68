package storage

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// DigestedBalance is one persisted row of a digestion run: the consolidated
// balance of an underlying holding after its derivative pair was folded in.
type DigestedBalance struct {
	ID           int64
	QueriedAt    time.Time
	Wallet       string
	TokenID      string
	Decimals     uint8
	RawBalance   *big.Int
	RawSpendable *big.Int
	Balance      string
	Rate         decimal.Decimal
	SupplyAPY    string
}
