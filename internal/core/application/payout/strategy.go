package payout

import (
	"context"
	"errors"
	"strings"

	"github.com/payout-network/payoutd/internal/core/domain"
)

// Strategy is the behavior adapter for one class of network backend. The
// engine routes every order operation through the strategy owning the order's
// (network, assetKind) key.
//
// Orders handed to a strategy always share that key; everything else
// (context, asset, batching) is partitioned internally.
type Strategy interface {
	// EstimateFee quotes the current payout fee for the given asset.
	EstimateFee(ctx context.Context, asset string) (*domain.FeeResult, error)
	// Prepare moves liquidity for Created orders, or auto-confirms them on
	// networks paying from an always-funded wallet.
	Prepare(ctx context.Context, orders []*domain.PayoutOrder) error
	// CheckPreparation polls pending liquidity transfers and confirms the
	// orders whose transfer completed.
	CheckPreparation(ctx context.Context, orders []*domain.PayoutOrder) error
	// Dispatch drives PreparationConfirmed orders to PayoutPending by
	// broadcasting the necessary transactions.
	Dispatch(ctx context.Context, orders []*domain.PayoutOrder) error
	// CheckCompletion polls the backend for finality and closes out finished
	// orders, attributing fees.
	CheckCompletion(ctx context.Context, orders []*domain.PayoutOrder) error
}

// isTimeoutError reports whether a dispatch failure is timeout-flavored. Such
// failures are re-raised instead of rolled back: the transaction may have
// been broadcast despite the client-side timeout, so undoing the designation
// could lead to a duplicate payment.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// groupByContext partitions orders per upstream context, preserving the order
// in which contexts first appear. Different contexts draw from different
// wallets and are never mixed into one batch.
func groupByContext(
	orders []*domain.PayoutOrder,
) ([]domain.PayoutContext, map[domain.PayoutContext][]*domain.PayoutOrder) {
	contexts := make([]domain.PayoutContext, 0)
	groups := make(map[domain.PayoutContext][]*domain.PayoutOrder)
	for _, order := range orders {
		if _, ok := groups[order.Context]; !ok {
			contexts = append(contexts, order.Context)
		}
		groups[order.Context] = append(groups[order.Context], order)
	}
	return contexts, groups
}

// groupByTxId partitions orders per broadcast transaction.
func groupByTxId(
	orders []*domain.PayoutOrder, txId func(o *domain.PayoutOrder) string,
) ([]string, map[string][]*domain.PayoutOrder) {
	txIds := make([]string, 0)
	groups := make(map[string][]*domain.PayoutOrder)
	for _, order := range orders {
		id := txId(order)
		if len(id) <= 0 {
			continue
		}
		if _, ok := groups[id]; !ok {
			txIds = append(txIds, id)
		}
		groups[id] = append(groups[id], order)
	}
	return txIds, groups
}

func orderIds(orders []*domain.PayoutOrder) []string {
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.Id)
	}
	return ids
}
