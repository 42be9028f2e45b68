package digest

import (
	"fmt"

	"github.com/openwalletd/yieldfold/internal/account"
	"github.com/shopspring/decimal"
)

// Extra metadata keys set on remapped operations.
const (
	ExtraOriginalValue = "originalValue"
	ExtraRate          = "rate"
)

// RemapOperations converts a derivative account's history into
// underlying-domain operations. opRates must be aligned 1:1 with
// deriv.Operations. Incoming transfers become supply events, outgoing
// transfers become redeem events, every other type is dropped. Values are
// converted at the rate of the operation's date and truncated toward zero.
//
// The composite operation id is deterministic, so recomputing the remap
// yields identical ids and merging stays idempotent.
func RemapOperations(targetAccountID string, deriv *account.Account, opRates []decimal.Decimal) []account.Operation {
	out := make([]account.Operation, 0, len(deriv.Operations))

	for i, op := range deriv.Operations {
		var mapped account.OperationType
		switch op.Type {
		case account.OpIn:
			mapped = account.OpSupply
		case account.OpOut:
			mapped = account.OpRedeem
		default:
			// Unmapped types carry no supply/redeem meaning.
			continue
		}

		rate := decimal.Zero
		if i < len(opRates) {
			rate = opRates[i]
		}
		value := decimal.NewFromBigInt(op.Value, 0).Mul(rate).Truncate(0).BigInt()

		out = append(out, account.Operation{
			ID:        fmt.Sprintf("%s-%s-%s", targetAccountID, op.Hash, mapped),
			Hash:      op.Hash,
			Date:      op.Date,
			Type:      mapped,
			Value:     value,
			AccountID: targetAccountID,
			Extra: map[string]string{
				ExtraOriginalValue: op.Value.String(),
				ExtraRate:          rate.String(),
			},
		})
	}

	return out
}
