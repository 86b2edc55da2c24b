package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/payout-network/payoutd/internal/core/domain"
)

type payoutOrderRepositoryImpl struct {
	store *badgerhold.Store
}

// NewPayoutOrderRepositoryImpl returns a badgerhold backed
// PayoutOrderRepository.
func NewPayoutOrderRepositoryImpl(store *badgerhold.Store) domain.PayoutOrderRepository {
	return payoutOrderRepositoryImpl{store}
}

func (r payoutOrderRepositoryImpl) AddOrder(
	_ context.Context, order *domain.PayoutOrder,
) error {
	if err := r.store.Insert(order.Id, *order); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return nil
		}
		return err
	}
	return nil
}

func (r payoutOrderRepositoryImpl) GetOrder(
	_ context.Context, id string,
) (*domain.PayoutOrder, error) {
	return r.getOrder(id)
}

func (r payoutOrderRepositoryImpl) GetOrderByCorrelation(
	_ context.Context, payoutContext domain.PayoutContext, correlationId string,
) (*domain.PayoutOrder, error) {
	query := badgerhold.Where("Context").Eq(payoutContext).
		And("CorrelationId").Eq(correlationId)

	orders, err := r.findOrders(query)
	if err != nil {
		return nil, err
	}
	if len(orders) <= 0 {
		return nil, domain.ErrOrderNotFound
	}
	return &orders[0], nil
}

func (r payoutOrderRepositoryImpl) GetOrdersForStatus(
	_ context.Context, statusCodes ...int,
) ([]*domain.PayoutOrder, error) {
	codes := make([]interface{}, 0, len(statusCodes))
	for _, code := range statusCodes {
		codes = append(codes, code)
	}
	query := badgerhold.Where("Status.Code").In(codes...)

	found, err := r.findOrders(query)
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.PayoutOrder, 0, len(found))
	for i := range found {
		orders = append(orders, &found[i])
	}
	return orders, nil
}

func (r payoutOrderRepositoryImpl) GetLatestOrder(
	_ context.Context,
) (*domain.PayoutOrder, error) {
	query := &badgerhold.Query{}
	found, err := r.findOrders(query.SortBy("CreationTime").Reverse().Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) <= 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r payoutOrderRepositoryImpl) UpdateOrder(
	_ context.Context, id string,
	updateFn func(o *domain.PayoutOrder) (*domain.PayoutOrder, error),
) error {
	currentOrder, err := r.getOrder(id)
	if err != nil {
		return err
	}

	updatedOrder, err := updateFn(currentOrder)
	if err != nil {
		return err
	}

	return r.store.Update(id, *updatedOrder)
}

func (r payoutOrderRepositoryImpl) getOrder(id string) (*domain.PayoutOrder, error) {
	var order domain.PayoutOrder
	if err := r.store.Get(id, &order); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r payoutOrderRepositoryImpl) findOrders(
	query *badgerhold.Query,
) ([]domain.PayoutOrder, error) {
	var orders []domain.PayoutOrder
	if err := r.store.Find(&orders, query); err != nil {
		return nil, err
	}
	return orders, nil
}
