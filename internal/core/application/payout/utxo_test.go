package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
)

func TestUtxoEstimateFee(t *testing.T) {
	t.Run("from_live_fee_rate", func(t *testing.T) {
		backend := newMockUtxoBackend()
		backend.feeRate = decimal.RequireFromString("0.00000002")
		strategy, _ := newTestUtxoStrategy(t, backend)

		fee, err := strategy.EstimateFee(context.Background(), "BTC")
		require.NoError(t, err)
		require.Equal(t, "BTC", fee.Asset)
		// 0.00000002 coin/vB * 300 vB
		require.True(t, fee.Amount.Equal(decimal.RequireFromString("0.000006")))
	})

	t.Run("binary_confirmation_networks_are_free", func(t *testing.T) {
		backend := newMockUtxoBackend()
		repo := newMockRepo()
		strategy := NewUtxoStrategy(UtxoConfig{
			Network:            "lightning",
			FeeAsset:           "BTC",
			MaxGroupSize:       100,
			BinaryConfirmation: true,
			FiatCurrency:       "CHF",
		}, backend, repo, &mockPricer{}, &mockNotifier{})

		fee, err := strategy.EstimateFee(context.Background(), "BTC")
		require.NoError(t, err)
		require.True(t, fee.Amount.IsZero())
	})
}

func TestUtxoDispatch(t *testing.T) {
	backend := newMockUtxoBackend()
	backend.feeRate = decimal.RequireFromString("0.00000002")
	strategy, repo := newTestUtxoStrategy(t, backend)

	orders := []*domain.PayoutOrder{
		newConfirmedUtxoOrder(t, repo, "addr-a", "1"),
		newConfirmedUtxoOrder(t, repo, "addr-a", "2"),
		newConfirmedUtxoOrder(t, repo, "addr-b", "0.5"),
	}

	require.NoError(t, strategy.Dispatch(context.Background(), orders))

	require.Len(t, backend.sent, 1)
	batch := backend.sent[0]
	require.Equal(t, domain.PayoutContextBuyCrypto, batch.context)
	require.Len(t, batch.outputs, 2)
	require.Equal(t, "addr-a", batch.outputs[0].Address)
	require.True(t, batch.outputs[0].Amount.Equal(decimal.NewFromInt(3)))
	require.Equal(t, "addr-b", batch.outputs[1].Address)
	require.True(t, batch.outputs[1].Amount.Equal(decimal.RequireFromString("0.5")))

	for _, order := range orders {
		require.Equal(t, domain.PayoutOrderStatusPayoutPending, order.Status.Code)
		require.Equal(t, "txid-1", order.PayoutTxId)

		persisted, err := repo.GetOrder(context.Background(), order.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PayoutOrderStatusPayoutPending, persisted.Status.Code)
	}
}

func TestUtxoDispatchFeeMultiplier(t *testing.T) {
	backend := newMockUtxoBackend()
	backend.feeRate = decimal.RequireFromString("0.00000002")
	repo := newMockRepo()
	strategy := NewUtxoStrategy(UtxoConfig{
		Network:                  "bitcoin",
		FeeAsset:                 "BTC",
		MaxGroupSize:             100,
		AverageTxSizeVBytes:      300,
		AllowUnconfirmedInputs:   true,
		UnconfirmedFeeMultiplier: decimal.RequireFromString("1.5"),
		FiatCurrency:             "CHF",
	}, backend, repo, &mockPricer{}, &mockNotifier{})

	orders := []*domain.PayoutOrder{newConfirmedUtxoOrder(t, repo, "addr-a", "1")}
	require.NoError(t, strategy.Dispatch(context.Background(), orders))

	require.Len(t, backend.sent, 1)
	require.True(t, backend.sent[0].feeRate.Equal(decimal.RequireFromString("0.00000003")))
}

func TestUtxoDispatchSkipsUnhealthyBackend(t *testing.T) {
	backend := newMockUtxoBackend()
	backend.healthy = false
	strategy, repo := newTestUtxoStrategy(t, backend)

	orders := []*domain.PayoutOrder{newConfirmedUtxoOrder(t, repo, "addr-a", "1")}
	require.NoError(t, strategy.Dispatch(context.Background(), orders))

	require.Empty(t, backend.sent)
	require.Equal(t, domain.PayoutOrderStatusPreparationConfirmed, orders[0].Status.Code)
}

func TestUtxoDispatchRollsBackOnFailure(t *testing.T) {
	backend := newMockUtxoBackend()
	backend.sendErr = errors.New("insufficient funds")
	strategy, repo := newTestUtxoStrategy(t, backend)

	orders := []*domain.PayoutOrder{
		newConfirmedUtxoOrder(t, repo, "addr-a", "1"),
		newConfirmedUtxoOrder(t, repo, "addr-b", "2"),
	}

	// a plain failure is swallowed after rolling back, the next cycle retries
	require.NoError(t, strategy.Dispatch(context.Background(), orders))

	for _, order := range orders {
		persisted, err := repo.GetOrder(context.Background(), order.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PayoutOrderStatusPreparationConfirmed, persisted.Status.Code)
		require.Empty(t, persisted.PayoutTxId)
	}
}

func TestUtxoDispatchKeepsDesignationOnTimeout(t *testing.T) {
	backend := newMockUtxoBackend()
	backend.sendErr = errors.New("post failed: timeout awaiting response")
	strategy, repo := newTestUtxoStrategy(t, backend)

	orders := []*domain.PayoutOrder{newConfirmedUtxoOrder(t, repo, "addr-a", "1")}

	// the transaction may have gone out, the order must stay designated for
	// the escalation pass instead of being retried
	err := strategy.Dispatch(context.Background(), orders)
	require.Error(t, err)

	persisted, err := repo.GetOrder(context.Background(), orders[0].Id)
	require.NoError(t, err)
	require.Equal(t, domain.PayoutOrderStatusPayoutDesignated, persisted.Status.Code)
}

func TestUtxoDispatchRejectsRebroadcast(t *testing.T) {
	backend := newMockUtxoBackend()
	strategy, repo := newTestUtxoStrategy(t, backend)

	order := newConfirmedUtxoOrder(t, repo, "addr-a", "1")
	order.PayoutTxId = "previous-txid"

	err := strategy.Dispatch(context.Background(), []*domain.PayoutOrder{order})
	require.EqualError(t, err, ErrSpeedupNotSupported.Error())
	require.Empty(t, backend.sent)
}

func TestUtxoCheckCompletion(t *testing.T) {
	backend := newMockUtxoBackend()
	backend.feeRate = decimal.RequireFromString("0.00000002")
	repo := newMockRepo()
	pricer := &mockPricer{price: decimal.NewFromInt(50000)}
	strategy := NewUtxoStrategy(UtxoConfig{
		Network:             "bitcoin",
		FeeAsset:            "BTC",
		MaxGroupSize:        100,
		AverageTxSizeVBytes: 300,
		FiatCurrency:        "CHF",
	}, backend, repo, pricer, &mockNotifier{})

	orders := []*domain.PayoutOrder{
		newConfirmedUtxoOrder(t, repo, "addr-a", "1"),
		newConfirmedUtxoOrder(t, repo, "addr-a", "2"),
		newConfirmedUtxoOrder(t, repo, "addr-b", "0.5"),
	}
	require.NoError(t, strategy.Dispatch(context.Background(), orders))

	t.Run("unconfirmed_tx_is_left_pending", func(t *testing.T) {
		backend.txs["txid-1"] = &ports.TxStatus{Confirmed: false}

		require.NoError(t, strategy.CheckCompletion(context.Background(), orders))
		for _, order := range orders {
			require.False(t, order.IsComplete())
		}
	})

	t.Run("confirmed_tx_completes_with_pro_rata_fees", func(t *testing.T) {
		backend.txs["txid-1"] = &ports.TxStatus{
			Confirmed:     true,
			Confirmations: 2,
			Fee:           decimal.RequireFromString("0.0002"),
		}

		require.NoError(t, strategy.CheckCompletion(context.Background(), orders))

		expectedFees := []string{"0.00005714", "0.00011429", "0.00002857"}
		feeTotal := decimal.Zero
		for i, order := range orders {
			require.True(t, order.IsComplete())
			require.Equal(t, "BTC", order.PayoutFeeAsset)
			require.True(
				t, order.PayoutFeeAmount.Equal(decimal.RequireFromString(expectedFees[i])),
				"order %d fee %s", i, order.PayoutFeeAmount,
			)
			require.True(t, order.PayoutFeeChf.IsPositive())
			feeTotal = feeTotal.Add(order.PayoutFeeAmount)
		}
		// the attributed fees add up to the exact transaction fee
		require.True(t, feeTotal.Equal(decimal.RequireFromString("0.0002")))
	})

	t.Run("completion_is_idempotent", func(t *testing.T) {
		fees := make([]decimal.Decimal, 0, len(orders))
		for _, order := range orders {
			fees = append(fees, order.PayoutFeeAmount)
		}

		require.NoError(t, strategy.CheckCompletion(context.Background(), orders))
		for i, order := range orders {
			require.True(t, order.PayoutFeeAmount.Equal(fees[i]))
		}
	})
}

func newTestUtxoStrategy(t *testing.T, backend *mockUtxoBackend) (Strategy, *mockRepo) {
	repo := newMockRepo()
	strategy := NewUtxoStrategy(UtxoConfig{
		Network:             "bitcoin",
		FeeAsset:            "BTC",
		MaxGroupSize:        100,
		AverageTxSizeVBytes: 300,
		FiatCurrency:        "CHF",
	}, backend, repo, &mockPricer{}, &mockNotifier{})
	return strategy, repo
}

func newConfirmedUtxoOrder(
	t *testing.T, repo *mockRepo, address, amount string,
) *domain.PayoutOrder {
	order, err := domain.NewPayoutOrder(
		domain.PayoutContextBuyCrypto, "corr-"+address+amount, "bitcoin",
		domain.AssetKindCoin, "BTC", decimal.RequireFromString(amount), address,
	)
	require.NoError(t, err)
	require.NoError(t, order.ConfirmPreparation())
	require.NoError(t, repo.AddOrder(context.Background(), order))
	return order
}
