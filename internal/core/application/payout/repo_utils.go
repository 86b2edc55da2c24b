package payout

import (
	"context"

	"github.com/payout-network/payoutd/internal/core/domain"
)

// applyTransition runs a state transition against the persisted order and
// mirrors the result into the in-memory copy used by the running cycle.
func applyTransition(
	ctx context.Context, repo domain.PayoutOrderRepository,
	order *domain.PayoutOrder, transition func(o *domain.PayoutOrder) error,
) error {
	return repo.UpdateOrder(ctx, order.Id,
		func(o *domain.PayoutOrder) (*domain.PayoutOrder, error) {
			if err := transition(o); err != nil {
				return nil, err
			}
			*order = *o
			return o, nil
		},
	)
}
