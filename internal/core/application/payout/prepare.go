package payout

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/mathutil"
)

// preparer covers the preparation phase of the order lifecycle. Networks
// paying from a shared treasury move liquidity into the hot wallet first,
// all others confirm immediately with zero fee.
type preparer interface {
	prepare(ctx context.Context, orders []*domain.PayoutOrder) error
	checkPreparation(ctx context.Context, orders []*domain.PayoutOrder) error
	estimateFee(ctx context.Context) (*domain.FeeResult, error)
}

// directPreparer auto-confirms preparation for networks whose payout wallet
// is always funded.
type directPreparer struct {
	feeAsset string
	repo     domain.PayoutOrderRepository
}

func newDirectPreparer(feeAsset string, repo domain.PayoutOrderRepository) preparer {
	return &directPreparer{feeAsset, repo}
}

func (p *directPreparer) prepare(ctx context.Context, orders []*domain.PayoutOrder) error {
	for _, order := range orders {
		if err := applyTransition(ctx, p.repo, order, func(o *domain.PayoutOrder) error {
			if err := o.ConfirmPreparation(); err != nil {
				return err
			}
			o.RecordPreparationFee(p.feeAsset, decimal.Zero)
			return nil
		}); err != nil {
			return fmt.Errorf("confirming preparation of order %s: %w", order.Id, err)
		}
	}
	return nil
}

func (p *directPreparer) checkPreparation(
	_ context.Context, _ []*domain.PayoutOrder,
) error {
	return nil
}

func (p *directPreparer) estimateFee(_ context.Context) (*domain.FeeResult, error) {
	return &domain.FeeResult{Asset: p.feeAsset, Amount: decimal.Zero}, nil
}

// treasuryPreparer funds the hot wallet from the shared treasury before
// payout, one transfer per asset batch.
type treasuryPreparer struct {
	feeAsset string
	repo     domain.PayoutOrderRepository
	treasury ports.Treasury
	backend  ports.AccountBackend
}

func newTreasuryPreparer(
	feeAsset string, repo domain.PayoutOrderRepository,
	treasury ports.Treasury, backend ports.AccountBackend,
) preparer {
	return &treasuryPreparer{feeAsset, repo, treasury, backend}
}

func (p *treasuryPreparer) prepare(ctx context.Context, orders []*domain.PayoutOrder) error {
	assets, groups := groupByAsset(orders)

	for _, asset := range assets {
		group := groups[asset]
		if err := p.prepareForAsset(ctx, asset, group); err != nil {
			log.WithError(err).Errorf(
				"error while preparing payout orders %v for asset %s", orderIds(group), asset,
			)
			continue
		}
	}
	return nil
}

func (p *treasuryPreparer) prepareForAsset(
	ctx context.Context, asset string, orders []*domain.PayoutOrder,
) error {
	if err := validateUniformGroup(orders); err != nil {
		return err
	}

	amount := mathutil.Round8(sumOrderAmounts(orders))

	destination, err := p.backend.GetWalletAddress(ctx)
	if err != nil {
		return fmt.Errorf("fetching hot wallet address: %w", err)
	}

	transferTxId, err := p.treasury.TransferLiquidity(ctx, asset, amount, destination)
	if err != nil {
		if errors.Is(err, ports.ErrTransferNotRequired) {
			return p.autoConfirm(ctx, orders)
		}
		return fmt.Errorf("transferring liquidity: %w", err)
	}

	for _, order := range orders {
		if err := applyTransition(ctx, p.repo, order, func(o *domain.PayoutOrder) error {
			return o.PendingPreparation(transferTxId)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *treasuryPreparer) checkPreparation(
	ctx context.Context, orders []*domain.PayoutOrder,
) error {
	transferTxIds, groups := groupByTxId(orders, func(o *domain.PayoutOrder) string {
		return o.TransferTxId
	})

	for _, transferTxId := range transferTxIds {
		group := groups[transferTxId]

		complete, err := p.treasury.CheckTransferCompletion(ctx, transferTxId)
		if err != nil {
			log.WithError(err).Errorf(
				"error while checking preparation of orders %v for transfer %s",
				orderIds(group), transferTxId,
			)
			continue
		}
		if !complete {
			continue
		}

		for _, order := range group {
			if err := applyTransition(ctx, p.repo, order, func(o *domain.PayoutOrder) error {
				if err := o.ConfirmPreparation(); err != nil {
					return err
				}
				o.RecordPreparationFee(p.feeAsset, decimal.Zero)
				return nil
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *treasuryPreparer) estimateFee(_ context.Context) (*domain.FeeResult, error) {
	return &domain.FeeResult{Asset: p.feeAsset, Amount: decimal.Zero}, nil
}

func (p *treasuryPreparer) autoConfirm(
	ctx context.Context, orders []*domain.PayoutOrder,
) error {
	for _, order := range orders {
		if err := applyTransition(ctx, p.repo, order, func(o *domain.PayoutOrder) error {
			return o.ConfirmPreparation()
		}); err != nil {
			return err
		}
	}
	return nil
}

func groupByAsset(
	orders []*domain.PayoutOrder,
) ([]string, map[string][]*domain.PayoutOrder) {
	assets := make([]string, 0)
	groups := make(map[string][]*domain.PayoutOrder)
	for _, order := range orders {
		if _, ok := groups[order.Asset]; !ok {
			assets = append(assets, order.Asset)
		}
		groups[order.Asset] = append(groups[order.Asset], order)
	}
	return assets, groups
}

func validateUniformGroup(orders []*domain.PayoutOrder) error {
	for i := range orders {
		if orders[i].Asset != orders[0].Asset ||
			orders[i].Status != orders[0].Status ||
			orders[i].Context != orders[0].Context {
			return ErrMixedOrderGroup
		}
	}
	return nil
}
