package storage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchInsertBalancesEmptyIsNoOp(t *testing.T) {
	// No pool needed: the empty batch short-circuits.
	s := &Store{}
	require.NoError(t, s.BatchInsertBalances(context.Background(), nil))
	require.NoError(t, s.BatchInsertBalances(context.Background(), []DigestedBalance{}))
}

func TestDigestedBalanceRow(t *testing.T) {
	row := DigestedBalance{
		QueriedAt:    time.Now().UTC(),
		Wallet:       "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d",
		TokenID:      "WXDAI",
		Decimals:     18,
		RawBalance:   big.NewInt(1_000_000_000_000_000_000),
		RawSpendable: big.NewInt(990_000_000_000_000_000),
		Balance:      "1",
		Rate:         decimal.RequireFromString("1.0215"),
		SupplyAPY:    "2.91%",
	}

	assert.Equal(t, "1000000000000000000", row.RawBalance.String())
	assert.True(t, row.Rate.GreaterThan(decimal.NewFromInt(1)))
}
