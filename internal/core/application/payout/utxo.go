package payout

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/mathutil"
)

// UtxoConfig carries the per-network tunables of the UTXO-batched family.
type UtxoConfig struct {
	Network string
	// FeeAsset is the native coin fees are paid in.
	FeeAsset string
	// MaxGroupSize bounds the number of orders per broadcast transaction.
	MaxGroupSize int
	// AverageTxSizeVBytes is the size assumed when quoting a payout fee.
	AverageTxSizeVBytes int64
	// AllowUnconfirmedInputs enables spending unconfirmed inputs, compensated
	// by multiplying the live fee rate with UnconfirmedFeeMultiplier to speed
	// up confirmation propagation.
	AllowUnconfirmedInputs   bool
	UnconfirmedFeeMultiplier decimal.Decimal
	// BinaryConfirmation marks networks where a transaction is either present
	// or absent. Those pay a fixed zero fee.
	BinaryConfirmation bool
	// FiatCurrency is the reference currency completed fees are annotated in.
	FiatCurrency string
}

// utxoStrategy is the UTXO-batched family: orders are partitioned per
// context, grouped, aggregated into one outgoing transaction per group and
// completed by polling the batch transaction.
type utxoStrategy struct {
	preparer

	cfg      UtxoConfig
	backend  ports.UtxoBackend
	repo     domain.PayoutOrderRepository
	pricer   ports.PriceSource
	notifier ports.Notifier
}

// NewUtxoStrategy returns the payout strategy for a UTXO-style network.
func NewUtxoStrategy(
	cfg UtxoConfig, backend ports.UtxoBackend, repo domain.PayoutOrderRepository,
	pricer ports.PriceSource, notifier ports.Notifier,
) Strategy {
	return &utxoStrategy{
		preparer: newDirectPreparer(cfg.FeeAsset, repo),
		cfg:      cfg,
		backend:  backend,
		repo:     repo,
		pricer:   pricer,
		notifier: notifier,
	}
}

func (s *utxoStrategy) EstimateFee(ctx context.Context, _ string) (*domain.FeeResult, error) {
	prepareFee, err := s.estimateFee(ctx)
	if err != nil {
		return nil, err
	}
	if s.cfg.BinaryConfirmation {
		return &domain.FeeResult{Asset: s.cfg.FeeAsset, Amount: prepareFee.Amount}, nil
	}

	feeRate, err := s.backend.EstimateFeeRate(ctx)
	if err != nil {
		return nil, err
	}

	amount := mathutil.Round8(feeRate.Mul(decimal.NewFromInt(s.cfg.AverageTxSizeVBytes)))
	return &domain.FeeResult{
		Asset:  s.cfg.FeeAsset,
		Amount: prepareFee.Amount.Add(amount),
	}, nil
}

func (s *utxoStrategy) Prepare(ctx context.Context, orders []*domain.PayoutOrder) error {
	return s.prepare(ctx, orders)
}

func (s *utxoStrategy) CheckPreparation(ctx context.Context, orders []*domain.PayoutOrder) error {
	return s.checkPreparation(ctx, orders)
}

func (s *utxoStrategy) Dispatch(ctx context.Context, orders []*domain.PayoutOrder) error {
	contexts, groups := groupByContext(orders)

	for _, payoutContext := range contexts {
		if !s.isHealthy(ctx, payoutContext) {
			continue
		}
		if err := s.dispatchForContext(ctx, payoutContext, groups[payoutContext]); err != nil {
			return err
		}
	}
	return nil
}

func (s *utxoStrategy) dispatchForContext(
	ctx context.Context, payoutContext domain.PayoutContext,
	orders []*domain.PayoutOrder,
) error {
	assets, byAsset := groupByAsset(orders)

	for _, asset := range assets {
		groups, err := createGroups(byAsset[asset], s.cfg.MaxGroupSize)
		if err != nil {
			return err
		}

		for _, group := range groups {
			if err := s.send(ctx, payoutContext, group); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *utxoStrategy) send(
	ctx context.Context, payoutContext domain.PayoutContext,
	orders []*domain.PayoutOrder,
) error {
	for _, order := range orders {
		if len(order.PayoutTxId) > 0 {
			return ErrSpeedupNotSupported
		}
	}

	outputs, err := aggregate(orders)
	if err != nil {
		return err
	}

	designated, err := s.designate(ctx, orders)
	if err != nil {
		s.rollback(ctx, designated)
		return err
	}

	payoutTxId, err := s.broadcast(ctx, payoutContext, outputs)
	if err != nil {
		// a timeout-flavored failure may have broadcast anyway, rolling back
		// the designation here could pay the batch twice
		if isTimeoutError(err) {
			return err
		}

		log.WithError(err).Errorf(
			"error on sending %s for payout, order id(s) %v",
			orders[0].Asset, orderIds(orders),
		)
		s.rollback(ctx, orders)
		return nil
	}

	s.recordBroadcast(ctx, orders, payoutTxId)
	return nil
}

func (s *utxoStrategy) broadcast(
	ctx context.Context, payoutContext domain.PayoutContext, outputs []ports.TxOutput,
) (string, error) {
	feeRate := decimal.Zero
	if !s.cfg.BinaryConfirmation {
		rate, err := s.backend.EstimateFeeRate(ctx)
		if err != nil {
			return "", err
		}
		if s.cfg.AllowUnconfirmedInputs {
			rate = rate.Mul(s.cfg.UnconfirmedFeeMultiplier)
		}
		feeRate = rate
	}

	return s.backend.SendToMany(ctx, payoutContext, outputs, feeRate)
}

func (s *utxoStrategy) designate(
	ctx context.Context, orders []*domain.PayoutOrder,
) ([]*domain.PayoutOrder, error) {
	designated := make([]*domain.PayoutOrder, 0, len(orders))
	for _, order := range orders {
		if err := applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
			return o.Designate()
		}); err != nil {
			return designated, err
		}
		designated = append(designated, order)
	}
	return designated, nil
}

func (s *utxoStrategy) rollback(ctx context.Context, orders []*domain.PayoutOrder) {
	for _, order := range orders {
		if err := applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
			return o.RollbackDesignation()
		}); err != nil {
			log.WithError(err).Errorf(
				"error on rolling back designation of order %s", order.Id,
			)
		}
	}
}

func (s *utxoStrategy) recordBroadcast(
	ctx context.Context, orders []*domain.PayoutOrder, payoutTxId string,
) {
	for _, order := range orders {
		if err := applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
			return o.PendingPayout(payoutTxId)
		}); err != nil {
			// the money moved but the ledger write failed, the engine cannot
			// self-heal this one
			msg := "error on saving payout txid " + payoutTxId + " for order " + order.Id
			log.WithError(err).Error(msg)
			s.alert(order, msg, err)
		}
	}
}

func (s *utxoStrategy) CheckCompletion(ctx context.Context, orders []*domain.PayoutOrder) error {
	contexts, groups := groupByContext(orders)

	for _, payoutContext := range contexts {
		if !s.isHealthy(ctx, payoutContext) {
			continue
		}
		s.checkCompletionForContext(ctx, payoutContext, groups[payoutContext])
	}
	return nil
}

func (s *utxoStrategy) checkCompletionForContext(
	ctx context.Context, payoutContext domain.PayoutContext,
	orders []*domain.PayoutOrder,
) {
	txIds, groups := groupByTxId(orders, func(o *domain.PayoutOrder) string {
		return o.PayoutTxId
	})

	for _, payoutTxId := range txIds {
		group := groups[payoutTxId]
		if err := s.checkCompletionForTx(ctx, payoutContext, group, payoutTxId); err != nil {
			log.WithError(err).Errorf(
				"error while checking payout completion of orders %v for txid %s",
				orderIds(group), payoutTxId,
			)
			continue
		}
	}
}

func (s *utxoStrategy) checkCompletionForTx(
	ctx context.Context, payoutContext domain.PayoutContext,
	orders []*domain.PayoutOrder, payoutTxId string,
) error {
	pending := make([]*domain.PayoutOrder, 0, len(orders))
	for _, order := range orders {
		if !order.IsComplete() {
			pending = append(pending, order)
		}
	}
	if len(pending) <= 0 {
		return nil
	}

	tx, err := s.backend.GetTransaction(ctx, payoutContext, payoutTxId)
	if err != nil {
		return err
	}
	if !tx.Confirmed {
		return nil
	}

	// pooled fees are attributed pro-rata over the whole batch total
	totalAmount := sumOrderAmounts(orders)
	feeChfRate := s.feeChfRate(ctx)

	for _, order := range pending {
		orderFee := mathutil.ProRata(tx.Fee, order.Amount, totalAmount)
		feeChf := mathutil.Round8(orderFee.Mul(feeChfRate))

		if err := applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
			return o.Complete(s.cfg.FeeAsset, orderFee, feeChf)
		}); err != nil {
			return err
		}
	}
	return nil
}

// feeChfRate quotes the fee asset in the reference fiat currency.
// Best-effort: settlement correctness outranks accounting completeness.
func (s *utxoStrategy) feeChfRate(ctx context.Context) decimal.Decimal {
	rate, err := s.pricer.GetPrice(ctx, s.cfg.FeeAsset, s.cfg.FiatCurrency)
	if err != nil {
		log.WithError(err).Warnf(
			"failed to price %s in %s, skipping fiat fee annotation",
			s.cfg.FeeAsset, s.cfg.FiatCurrency,
		)
		return decimal.Zero
	}
	return rate
}

func (s *utxoStrategy) isHealthy(
	ctx context.Context, payoutContext domain.PayoutContext,
) bool {
	healthy, err := s.backend.IsHealthy(ctx, payoutContext)
	if err != nil {
		log.WithError(err).Warnf(
			"%s backend health check failed, skipping cycle for context %s",
			s.cfg.Network, payoutContext,
		)
		return false
	}
	if !healthy {
		log.Warnf(
			"%s backend unhealthy, skipping cycle for context %s",
			s.cfg.Network, payoutContext,
		)
	}
	return healthy
}

func (s *utxoStrategy) alert(order *domain.PayoutOrder, msg string, err error) {
	correlationId := "PayoutOrder&" + string(order.Context) + "&" + order.Id
	errs := []string{msg}
	if err != nil {
		errs = append(errs, err.Error())
	}
	if alertErr := s.notifier.SendAlert("Payout Error", errs, correlationId); alertErr != nil {
		log.WithError(alertErr).Error("failed to send payout error alert")
	}
}
