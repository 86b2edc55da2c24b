package payout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/payout-network/payoutd/internal/core/domain"
)

func TestDoPayout(t *testing.T) {
	svc, repo, _ := newTestService(t)

	order, err := svc.DoPayout(context.Background(), PayoutRequest{
		Context:            domain.PayoutContextBuyCrypto,
		CorrelationId:      "corr-1",
		Network:            "bitcoin",
		AssetKind:          domain.AssetKindCoin,
		Asset:              "BTC",
		Amount:             decimal.NewFromInt(1),
		DestinationAddress: "addr-a",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PayoutOrderStatusCreated, order.Status.Code)

	persisted, err := repo.GetOrder(context.Background(), order.Id)
	require.NoError(t, err)
	require.Equal(t, "corr-1", persisted.CorrelationId)
}

func TestFailingDoPayout(t *testing.T) {
	svc, _, _ := newTestService(t)

	order, err := svc.DoPayout(context.Background(), PayoutRequest{
		Context:            domain.PayoutContextBuyCrypto,
		CorrelationId:      "corr-1",
		Network:            "bitcoin",
		AssetKind:          domain.AssetKindCoin,
		Asset:              "BTC",
		Amount:             decimal.Zero,
		DestinationAddress: "addr-a",
	})
	require.EqualError(t, err, domain.ErrOrderInvalidAmount.Error())
	require.Nil(t, order)
}

func TestCheckOrderCompletion(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := addServiceOrder(t, repo, domain.PayoutOrderStatusCreated, -60)

	status, err := svc.CheckOrderCompletion(
		context.Background(), order.Context, order.CorrelationId,
	)
	require.NoError(t, err)
	require.False(t, status.IsComplete)

	_, err = svc.CheckOrderCompletion(
		context.Background(), domain.PayoutContextRefund, "unknown",
	)
	require.EqualError(t, err, domain.ErrOrderNotFound.Error())
}

func TestEstimateFee(t *testing.T) {
	svc, _, _ := newTestService(t)

	fee, err := svc.EstimateFee(
		context.Background(), "bitcoin", domain.AssetKindCoin, "BTC",
	)
	require.NoError(t, err)
	require.Equal(t, "BTC", fee.Asset)

	_, err = svc.EstimateFee(context.Background(), "monero", domain.AssetKindCoin, "XMR")
	var notFound *StrategyNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestProcessOrdersCycle(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	strategy := registeredStrategy(t, svc)

	created := addServiceOrder(t, repo, domain.PayoutOrderStatusCreated, -60)
	confirmed := addServiceOrder(t, repo, domain.PayoutOrderStatusPreparationConfirmed, -60)
	preparing := addServiceOrder(t, repo, domain.PayoutOrderStatusPreparationPending, -60)
	preparing.TransferTxId = "transfer-1"
	updateServiceOrder(t, repo, preparing)
	pending := addServiceOrder(t, repo, domain.PayoutOrderStatusPayoutPending, -60)
	pending.PayoutTxId = "txid-1"
	updateServiceOrder(t, repo, pending)
	designated := addServiceOrder(t, repo, domain.PayoutOrderStatusPayoutDesignated, -60)

	require.NoError(t, svc.ProcessOrders(context.Background()))

	require.Equal(t, [][]string{{created.Id}}, callOrderIds(strategy, "prepare"))
	require.Equal(t, [][]string{{confirmed.Id}}, callOrderIds(strategy, "dispatch"))
	require.Equal(t, [][]string{{preparing.Id}}, callOrderIds(strategy, "checkPreparation"))
	require.Equal(t, [][]string{{pending.Id}}, callOrderIds(strategy, "checkCompletion"))

	// the designated order is escalated, not dispatched
	persisted, err := repo.GetOrder(context.Background(), designated.Id)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutOrderStatusPayoutUncertain, persisted.Status.Code)
	require.Len(t, notifier.alerts, 1)
	require.Contains(t, notifier.alerts[0].correlationId, designated.Id)
}

func TestProcessOrdersDebouncesFreshOrders(t *testing.T) {
	svc, repo, _ := newTestService(t)
	strategy := registeredStrategy(t, svc)

	addServiceOrder(t, repo, domain.PayoutOrderStatusCreated, 0)

	require.NoError(t, svc.ProcessOrders(context.Background()))

	// upstream may still be inserting, the prepare pass waits
	require.Empty(t, strategy.callsFor("prepare"))
}

func TestProcessOrdersSkipsUnroutableOrders(t *testing.T) {
	svc, repo, _ := newTestService(t)
	strategy := registeredStrategy(t, svc)

	order := addServiceOrder(t, repo, domain.PayoutOrderStatusPreparationConfirmed, -60)
	unroutable, err := domain.NewPayoutOrder(
		domain.PayoutContextBuyCrypto, "corr-x", "monero", domain.AssetKindCoin,
		"XMR", decimal.NewFromInt(1), "addr-x",
	)
	require.NoError(t, err)
	require.NoError(t, unroutable.ConfirmPreparation())
	require.NoError(t, repo.AddOrder(context.Background(), unroutable))

	require.NoError(t, svc.ProcessOrders(context.Background()))

	require.Equal(t, [][]string{{order.Id}}, callOrderIds(strategy, "dispatch"))
}

func TestSpeedupTransaction(t *testing.T) {
	svc, repo, _ := newTestService(t)
	strategy := registeredStrategy(t, svc)

	order := addServiceOrder(t, repo, domain.PayoutOrderStatusPayoutPending, -60)

	require.NoError(t, svc.SpeedupTransaction(context.Background(), order.Id))
	require.Equal(t, [][]string{{order.Id}}, callOrderIds(strategy, "dispatch"))

	err := svc.SpeedupTransaction(context.Background(), "unknown-id")
	require.EqualError(t, err, domain.ErrOrderNotFound.Error())
}

func newTestService(t *testing.T) (*Service, *mockRepo, *mockNotifier) {
	repo := newMockRepo()
	notifier := &mockNotifier{}
	registry := NewStrategyRegistry()
	registry.Register(
		domain.StrategyKey{Network: "bitcoin", AssetKind: domain.AssetKindCoin},
		&mockStrategy{},
	)

	svc, err := NewService(&mockRepoManager{repo: repo}, registry, notifier)
	require.NoError(t, err)
	return svc, repo, notifier
}

func registeredStrategy(t *testing.T, svc *Service) *mockStrategy {
	resolved, err := svc.Registry().Resolve("bitcoin", domain.AssetKindCoin)
	require.NoError(t, err)
	strategy, ok := resolved.(*mockStrategy)
	require.True(t, ok)
	return strategy
}

func addServiceOrder(
	t *testing.T, repo *mockRepo, statusCode int, ageSeconds int64,
) *domain.PayoutOrder {
	order, err := domain.NewPayoutOrder(
		domain.PayoutContextBuyCrypto, "corr-"+time.Now().String(), "bitcoin",
		domain.AssetKindCoin, "BTC", decimal.NewFromInt(1), "addr-a",
	)
	require.NoError(t, err)
	order.Status.Code = statusCode
	order.CreationTime = time.Now().Unix() + ageSeconds
	require.NoError(t, repo.AddOrder(context.Background(), order))
	return order
}

func callOrderIds(strategy *mockStrategy, operation string) [][]string {
	calls := strategy.callsFor(operation)
	ids := make([][]string, 0, len(calls))
	for _, call := range calls {
		ids = append(ids, call.orderIds)
	}
	return ids
}

func updateServiceOrder(t *testing.T, repo *mockRepo, order *domain.PayoutOrder) {
	require.NoError(t, repo.UpdateOrder(context.Background(), order.Id,
		func(o *domain.PayoutOrder) (*domain.PayoutOrder, error) {
			clone := *order
			return &clone, nil
		},
	))
}
