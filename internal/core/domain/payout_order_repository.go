package domain

import "context"

// PayoutOrderRepository is the abstraction for any kind of database intended
// to persist PayoutOrders. Each order's transitions are individually durable,
// no cross-order transactions are required.
type PayoutOrderRepository interface {
	// AddOrder persists a newly created order.
	AddOrder(ctx context.Context, order *PayoutOrder) error
	// GetOrder returns the order with the given id, or ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (*PayoutOrder, error)
	// GetOrderByCorrelation returns the order created for the given upstream
	// context and correlation id, or ErrOrderNotFound.
	GetOrderByCorrelation(
		ctx context.Context, payoutContext PayoutContext, correlationId string,
	) (*PayoutOrder, error)
	// GetOrdersForStatus returns all orders in any of the given statuses.
	GetOrdersForStatus(ctx context.Context, statusCodes ...int) ([]*PayoutOrder, error)
	// GetLatestOrder returns the most recently created order, or nil if the
	// ledger is empty.
	GetLatestOrder(ctx context.Context) (*PayoutOrder, error)
	// UpdateOrder commits multiple changes to the same order in a
	// transactional way.
	UpdateOrder(
		ctx context.Context, id string,
		updateFn func(o *PayoutOrder) (*PayoutOrder, error),
	) error
}
