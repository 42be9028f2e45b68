package account

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(id string, unix int64, typ OperationType) Operation {
	return Operation{
		ID:    id,
		Hash:  "0x" + id,
		Date:  time.Unix(unix, 0).UTC(),
		Type:  typ,
		Value: big.NewInt(1),
	}
}

func TestMergeOperationsDedupesByID(t *testing.T) {
	a := []Operation{op("x", 100, OpIn), op("y", 200, OpOut)}
	b := []Operation{op("x", 100, OpIn), op("z", 300, OpIn)}

	out := MergeOperations(a, b)
	require.Len(t, out, 3)

	ids := make([]string, len(out))
	for i, o := range out {
		ids[i] = o.ID
	}
	assert.ElementsMatch(t, []string{"x", "y", "z"}, ids)
}

func TestMergeOperationsFirstWinsOnConflict(t *testing.T) {
	kept := op("x", 100, OpSupply)
	kept.Value = big.NewInt(42)
	shadowed := op("x", 100, OpSupply)
	shadowed.Value = big.NewInt(7)

	out := MergeOperations([]Operation{kept}, []Operation{shadowed})
	require.Len(t, out, 1)
	assert.Equal(t, big.NewInt(42), out[0].Value)
}

func TestMergeOperationsSortsDateDescending(t *testing.T) {
	out := MergeOperations(
		[]Operation{op("a", 100, OpIn)},
		[]Operation{op("c", 300, OpIn), op("b", 200, OpOut)},
	)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "a", out[2].ID)
}

func TestSortOperationsStableOnEqualDates(t *testing.T) {
	ops := []Operation{op("b", 100, OpIn), op("a", 100, OpIn)}
	SortOperations(ops)
	assert.Equal(t, "a", ops[0].ID)
	assert.Equal(t, "b", ops[1].ID)
}

func TestCloneIsolatesBalances(t *testing.T) {
	acct := &Account{
		ID:         "a1",
		TokenID:    "WXDAI",
		Balance:    big.NewInt(100),
		Spendable:  big.NewInt(90),
		Operations: []Operation{op("x", 100, OpIn)},
	}

	clone := acct.Clone()
	clone.Balance.SetInt64(0)
	clone.Operations = append(clone.Operations, op("y", 200, OpOut))

	assert.Equal(t, big.NewInt(100), acct.Balance)
	assert.Len(t, acct.Operations, 1)
}

func TestCloneNilBalance(t *testing.T) {
	acct := &Account{ID: "a1"}
	clone := acct.Clone()
	require.NotNil(t, clone.Balance)
	assert.Zero(t, clone.Balance.Sign())
}

func TestOperationTypeString(t *testing.T) {
	assert.Equal(t, "IN", OpIn.String())
	assert.Equal(t, "OUT", OpOut.String())
	assert.Equal(t, "SUPPLY", OpSupply.String())
	assert.Equal(t, "REDEEM", OpRedeem.String())
	assert.Equal(t, "NONE", OperationType(99).String())
}
