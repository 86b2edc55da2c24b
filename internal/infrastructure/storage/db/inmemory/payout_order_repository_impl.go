package inmemory

import (
	"context"
	"sync"

	"github.com/payout-network/payoutd/internal/core/domain"
)

type payoutOrderRepositoryImpl struct {
	locker *sync.Mutex
	orders map[string]domain.PayoutOrder
	// insertion order, used to find the latest created order
	orderIds []string
}

// NewPayoutOrderRepositoryImpl returns a new in-memory PayoutOrderRepository.
func NewPayoutOrderRepositoryImpl() domain.PayoutOrderRepository {
	return &payoutOrderRepositoryImpl{
		locker: &sync.Mutex{},
		orders: make(map[string]domain.PayoutOrder),
	}
}

func (r *payoutOrderRepositoryImpl) AddOrder(
	_ context.Context, order *domain.PayoutOrder,
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.orders[order.Id] = *order
	r.orderIds = append(r.orderIds, order.Id)
	return nil
}

func (r *payoutOrderRepositoryImpl) GetOrder(
	_ context.Context, id string,
) (*domain.PayoutOrder, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	return r.getOrder(id)
}

func (r *payoutOrderRepositoryImpl) GetOrderByCorrelation(
	_ context.Context, payoutContext domain.PayoutContext, correlationId string,
) (*domain.PayoutOrder, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	for _, id := range r.orderIds {
		order := r.orders[id]
		if order.Context == payoutContext && order.CorrelationId == correlationId {
			return &order, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *payoutOrderRepositoryImpl) GetOrdersForStatus(
	_ context.Context, statusCodes ...int,
) ([]*domain.PayoutOrder, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	orders := make([]*domain.PayoutOrder, 0)
	for _, id := range r.orderIds {
		order := r.orders[id]
		for _, code := range statusCodes {
			if order.Status.Code == code {
				orders = append(orders, &order)
				break
			}
		}
	}
	return orders, nil
}

func (r *payoutOrderRepositoryImpl) GetLatestOrder(
	_ context.Context,
) (*domain.PayoutOrder, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	var latest *domain.PayoutOrder
	for _, id := range r.orderIds {
		order := r.orders[id]
		if latest == nil || order.CreationTime > latest.CreationTime {
			latest = &order
		}
	}
	return latest, nil
}

func (r *payoutOrderRepositoryImpl) UpdateOrder(
	_ context.Context, id string,
	updateFn func(o *domain.PayoutOrder) (*domain.PayoutOrder, error),
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	currentOrder, err := r.getOrder(id)
	if err != nil {
		return err
	}

	updatedOrder, err := updateFn(currentOrder)
	if err != nil {
		return err
	}

	r.orders[id] = *updatedOrder
	return nil
}

func (r *payoutOrderRepositoryImpl) getOrder(id string) (*domain.PayoutOrder, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &order, nil
}
