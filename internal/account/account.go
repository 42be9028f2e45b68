package account

import (
	"math/big"
	"sort"
	"time"
)

// OperationType tags one balance-affecting event.
type OperationType int

const (
	OpIn OperationType = iota
	OpOut
	OpSupply
	OpRedeem
	OpFees
	OpNone
)

var opNames = map[OperationType]string{
	OpIn:     "IN",
	OpOut:    "OUT",
	OpSupply: "SUPPLY",
	OpRedeem: "REDEEM",
	OpFees:   "FEES",
	OpNone:   "NONE",
}

func (t OperationType) String() string {
	if s, ok := opNames[t]; ok {
		return s
	}
	return "NONE"
}

// Operation is one historical balance-affecting event. Operations are
// append-only and compared by ID when merging histories.
type Operation struct {
	ID        string
	Hash      string
	Date      time.Time
	Type      OperationType
	Value     *big.Int // smallest units, always >= 0
	AccountID string
	Extra     map[string]string
}

// Account is one asset holding. The digestion core never mutates an Account
// in place; it produces transformed copies.
type Account struct {
	ID         string
	TokenID    string
	Balance    *big.Int // smallest units
	Spendable  *big.Int
	Operations []Operation // sorted by date descending
	Pending    []Operation
	CreatedAt  time.Time
}

// Clone returns a shallow-plus copy: balances are fresh big.Ints and the
// operation slices are fresh, the operations themselves are shared.
func (a *Account) Clone() *Account {
	out := *a
	out.Balance = cloneInt(a.Balance)
	out.Spendable = cloneInt(a.Spendable)
	out.Operations = append([]Operation(nil), a.Operations...)
	out.Pending = append([]Operation(nil), a.Pending...)
	return &out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// MergeOperations unions two histories keyed by operation id. Entries of a
// win over same-id entries of b. The result is sorted by date descending.
func MergeOperations(a, b []Operation) []Operation {
	seen := make(map[string]struct{}, len(a))
	out := make([]Operation, 0, len(a)+len(b))
	for _, op := range a {
		seen[op.ID] = struct{}{}
		out = append(out, op)
	}
	for _, op := range b {
		if _, dup := seen[op.ID]; dup {
			continue
		}
		out = append(out, op)
	}
	SortOperations(out)
	return out
}

// SortOperations orders operations by date descending, id ascending on ties
// so the output is deterministic.
func SortOperations(ops []Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if !ops[i].Date.Equal(ops[j].Date) {
			return ops[i].Date.After(ops[j].Date)
		}
		return ops[i].ID < ops[j].ID
	})
}
