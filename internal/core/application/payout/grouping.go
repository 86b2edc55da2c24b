package payout

import (
	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/mathutil"
)

// createGroups partitions orders into batches of at most maxGroupSize distinct
// destination addresses. Orders to the same address always land in the same
// batch, so aggregation collapses them into a single output and no broadcast
// transaction pays an address twice. Addresses fill groups greedily in
// first-seen order, so the outcome is deterministic for a given input order.
func createGroups(
	orders []*domain.PayoutOrder, maxGroupSize int,
) ([][]*domain.PayoutOrder, error) {
	if maxGroupSize == 0 {
		return nil, ErrZeroMaxGroupSize
	}
	if !ordersOfSameAsset(orders) {
		return nil, ErrMixedAssetGroup
	}

	addresses := make([]string, 0, len(orders))
	byAddress := make(map[string][]*domain.PayoutOrder)
	for _, order := range orders {
		if _, ok := byAddress[order.DestinationAddress]; !ok {
			addresses = append(addresses, order.DestinationAddress)
		}
		byAddress[order.DestinationAddress] = append(
			byAddress[order.DestinationAddress], order,
		)
	}

	groups := make([][]*domain.PayoutOrder, 0)
	addressesInGroup := 0

	for _, address := range addresses {
		if len(groups) == 0 || addressesInGroup >= maxGroupSize {
			groups = append(groups, nil)
			addressesInGroup = 0
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], byAddress[address]...)
		addressesInGroup++
	}

	return groups, nil
}

// aggregate merges orders to the same destination address into single outputs
// rounded to the payout precision, drops zero outputs, and corrects any
// rounding drift so that the total of the broadcast outputs exactly equals the
// rounded sum of the order amounts.
func aggregate(orders []*domain.PayoutOrder) ([]ports.TxOutput, error) {
	addresses := make([]string, 0, len(orders))
	sums := make(map[string]decimal.Decimal)

	for _, order := range orders {
		if _, ok := sums[order.DestinationAddress]; !ok {
			addresses = append(addresses, order.DestinationAddress)
		}
		sums[order.DestinationAddress] = sums[order.DestinationAddress].Add(order.Amount)
	}

	outputs := make([]ports.TxOutput, 0, len(addresses))
	for _, address := range addresses {
		amount := mathutil.Round8(sums[address])
		if amount.IsZero() {
			continue
		}
		outputs = append(outputs, ports.TxOutput{Address: address, Amount: amount})
	}

	target := mathutil.Round8(sumOrderAmounts(orders))
	return fixRoundingMismatch(outputs, target)
}

// fixRoundingMismatch adjusts output amounts by one unit in the last place
// until their total matches the target. The ledger's promised total must
// never drift from the broadcast total.
func fixRoundingMismatch(
	outputs []ports.TxOutput, target decimal.Decimal,
) ([]ports.TxOutput, error) {
	total := decimal.Zero
	for _, out := range outputs {
		total = total.Add(out.Amount)
	}

	mismatch := target.Sub(total)
	if mismatch.IsZero() {
		return outputs, nil
	}

	unit := mathutil.Unit(mathutil.PayoutPrecision)
	maxMismatch := unit.Mul(decimal.NewFromInt(int64(len(outputs))))
	if mismatch.Abs().GreaterThanOrEqual(maxMismatch) {
		return nil, ErrRoundingMismatchTooHigh
	}

	correction := unit
	if mismatch.IsNegative() {
		correction = unit.Neg()
	}

	remaining := mismatch
	for i := range outputs {
		if remaining.IsZero() {
			break
		}
		outputs[i].Amount = outputs[i].Amount.Add(correction)
		remaining = remaining.Sub(correction)
	}

	return outputs, nil
}

func ordersOfSameAsset(orders []*domain.PayoutOrder) bool {
	for i := range orders {
		if orders[i].Asset != orders[0].Asset {
			return false
		}
	}
	return true
}

func sumOrderAmounts(orders []*domain.PayoutOrder) decimal.Decimal {
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(order.Amount)
	}
	return total
}
