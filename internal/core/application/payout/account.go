package payout

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/mathutil"
)

// gasQuoteTTL bounds how long a gas quote is reused before asking the backend
// again.
const gasQuoteTTL = 30 * time.Second

// AccountConfig carries the per-network tunables of the account/gas family.
type AccountConfig struct {
	Network  string
	FeeAsset string
	// SpeedupEnabled gates rebroadcasting a pending payout at the same
	// ordering slot with a higher fee.
	SpeedupEnabled bool
	FiatCurrency   string
}

// accountStrategy is the account/gas family: no batching, every order is its
// own transaction, since the cost model charges per transaction regardless.
type accountStrategy struct {
	preparer

	cfg      AccountConfig
	backend  ports.AccountBackend
	repo     domain.PayoutOrderRepository
	pricer   ports.PriceSource
	notifier ports.Notifier

	quoteMtx  sync.Mutex
	gasQuotes map[string]gasQuote
}

type gasQuote struct {
	fee       decimal.Decimal
	fetchedAt time.Time
}

// NewAccountStrategy returns the payout strategy for an account-model
// network. A nil treasury selects direct preparation (always-funded wallet).
func NewAccountStrategy(
	cfg AccountConfig, backend ports.AccountBackend,
	repo domain.PayoutOrderRepository, treasury ports.Treasury,
	pricer ports.PriceSource, notifier ports.Notifier,
) Strategy {
	var prep preparer = newDirectPreparer(cfg.FeeAsset, repo)
	if treasury != nil {
		prep = newTreasuryPreparer(cfg.FeeAsset, repo, treasury, backend)
	}

	return &accountStrategy{
		preparer:  prep,
		cfg:       cfg,
		backend:   backend,
		repo:      repo,
		pricer:    pricer,
		notifier:  notifier,
		gasQuotes: make(map[string]gasQuote),
	}
}

func (s *accountStrategy) EstimateFee(
	ctx context.Context, asset string,
) (*domain.FeeResult, error) {
	prepareFee, err := s.estimateFee(ctx)
	if err != nil {
		return nil, err
	}
	fee, err := s.quoteGasFee(ctx, asset)
	if err != nil {
		return nil, err
	}
	return &domain.FeeResult{
		Asset:  s.cfg.FeeAsset,
		Amount: prepareFee.Amount.Add(fee),
	}, nil
}

// quoteGasFee returns gasPrice * gasLimit for the asset, cached briefly per
// fee-asset id to avoid hammering the backend on every order.
func (s *accountStrategy) quoteGasFee(
	ctx context.Context, asset string,
) (decimal.Decimal, error) {
	s.quoteMtx.Lock()
	defer s.quoteMtx.Unlock()

	if quote, ok := s.gasQuotes[asset]; ok && time.Since(quote.fetchedAt) < gasQuoteTTL {
		return quote.fee, nil
	}

	gasPrice, err := s.backend.GetGasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	gasLimit, err := s.backend.GetGasLimit(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}

	fee := mathutil.Round8(gasPrice.Mul(gasLimit))
	s.gasQuotes[asset] = gasQuote{fee: fee, fetchedAt: time.Now()}
	return fee, nil
}

func (s *accountStrategy) Prepare(ctx context.Context, orders []*domain.PayoutOrder) error {
	return s.prepare(ctx, orders)
}

func (s *accountStrategy) CheckPreparation(ctx context.Context, orders []*domain.PayoutOrder) error {
	return s.checkPreparation(ctx, orders)
}

func (s *accountStrategy) Dispatch(ctx context.Context, orders []*domain.PayoutOrder) error {
	if !s.isHealthy(ctx) {
		return nil
	}

	for _, order := range orders {
		if err := s.dispatchOrder(ctx, order); err != nil {
			if isTimeoutError(err) {
				return err
			}
			log.WithError(err).Errorf(
				"error on dispatching payout order %s on %s", order.Id, s.cfg.Network,
			)
			continue
		}
	}
	return nil
}

func (s *accountStrategy) dispatchOrder(ctx context.Context, order *domain.PayoutOrder) error {
	if len(order.PayoutTxId) > 0 {
		return s.speedup(ctx, order)
	}

	if err := applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
		return o.Designate()
	}); err != nil {
		return err
	}

	payoutTxId, err := s.sendOrder(ctx, order, nil)
	if err != nil {
		if isTimeoutError(err) {
			return err
		}
		s.rollback(ctx, order)
		return err
	}

	if err := applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
		return o.PendingPayout(payoutTxId)
	}); err != nil {
		msg := "error on saving payout txid " + payoutTxId + " for order " + order.Id
		log.WithError(err).Error(msg)
		s.alert(order, msg, err)
	}
	return nil
}

// speedup resubmits a pending payout with the same ordering slot. It is only
// available when the feature flag is enabled for the network.
func (s *accountStrategy) speedup(ctx context.Context, order *domain.PayoutOrder) error {
	if !s.cfg.SpeedupEnabled {
		return ErrSpeedupNotSupported
	}

	nonce, err := s.backend.GetTxNonce(ctx, order.PayoutTxId)
	if err != nil {
		return err
	}

	payoutTxId, err := s.sendOrder(ctx, order, &nonce)
	if err != nil {
		return err
	}

	return applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
		return o.SpeedupPayout(payoutTxId)
	})
}

func (s *accountStrategy) sendOrder(
	ctx context.Context, order *domain.PayoutOrder, nonce *uint64,
) (string, error) {
	if order.AssetKind == domain.AssetKindToken {
		return s.backend.SendToken(
			ctx, order.Asset, order.DestinationAddress, order.Amount, nonce,
		)
	}
	return s.backend.SendCoin(ctx, order.DestinationAddress, order.Amount, nonce)
}

func (s *accountStrategy) rollback(ctx context.Context, order *domain.PayoutOrder) {
	if err := applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
		return o.RollbackDesignation()
	}); err != nil {
		log.WithError(err).Errorf(
			"error on rolling back designation of order %s", order.Id,
		)
	}
}

func (s *accountStrategy) CheckCompletion(ctx context.Context, orders []*domain.PayoutOrder) error {
	if !s.isHealthy(ctx) {
		return nil
	}

	for _, order := range orders {
		if order.IsComplete() || len(order.PayoutTxId) <= 0 {
			continue
		}
		if err := s.checkOrderCompletion(ctx, order); err != nil {
			log.WithError(err).Errorf(
				"error while checking completion of payout order %s for txid %s",
				order.Id, order.PayoutTxId,
			)
			continue
		}
	}
	return nil
}

func (s *accountStrategy) checkOrderCompletion(
	ctx context.Context, order *domain.PayoutOrder,
) error {
	tx, err := s.backend.GetTransaction(ctx, order.PayoutTxId)
	if err != nil {
		return err
	}
	if !tx.Confirmed {
		return nil
	}

	feeChf := decimal.Zero
	rate, err := s.pricer.GetPrice(ctx, s.cfg.FeeAsset, s.cfg.FiatCurrency)
	if err != nil {
		log.WithError(err).Warnf(
			"failed to price %s in %s, skipping fiat fee annotation",
			s.cfg.FeeAsset, s.cfg.FiatCurrency,
		)
	} else {
		feeChf = mathutil.Round8(tx.Fee.Mul(rate))
	}

	return applyTransition(ctx, s.repo, order, func(o *domain.PayoutOrder) error {
		return o.Complete(s.cfg.FeeAsset, tx.Fee, feeChf)
	})
}

func (s *accountStrategy) isHealthy(ctx context.Context) bool {
	healthy, err := s.backend.IsHealthy(ctx)
	if err != nil {
		log.WithError(err).Warnf(
			"%s backend health check failed, skipping cycle", s.cfg.Network,
		)
		return false
	}
	if !healthy {
		log.Warnf("%s backend unhealthy, skipping cycle", s.cfg.Network)
	}
	return healthy
}

func (s *accountStrategy) alert(order *domain.PayoutOrder, msg string, err error) {
	correlationId := "PayoutOrder&" + string(order.Context) + "&" + order.Id
	errs := []string{msg}
	if err != nil {
		errs = append(errs, err.Error())
	}
	if alertErr := s.notifier.SendAlert("Payout Error", errs, correlationId); alertErr != nil {
		log.WithError(alertErr).Error("failed to send payout error alert")
	}
}
