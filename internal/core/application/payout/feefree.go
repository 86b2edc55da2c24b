package payout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
)

// FeeFreeConfig carries the tunables of the fee-free / reverse-gas family.
type FeeFreeConfig struct {
	Network  string
	FeeAsset string
	// TokenTransferCost is the fixed cost of a token transfer on reverse-gas
	// networks, paid in the transferred asset itself. Zero on fee-free
	// networks.
	TokenTransferCost decimal.Decimal
	FiatCurrency      string
}

// feeFreeStrategy handles layer-2 and account-model networks where the fee is
// zero or paid in the transferred asset itself. Dispatch and completion are
// those of the account/gas family, but no fee-rate lookup ever happens.
type feeFreeStrategy struct {
	*accountStrategy

	feeFreeCfg FeeFreeConfig
}

// NewFeeFreeStrategy returns the payout strategy for a fee-free or
// reverse-gas network.
func NewFeeFreeStrategy(
	cfg FeeFreeConfig, backend ports.AccountBackend,
	repo domain.PayoutOrderRepository, pricer ports.PriceSource,
	notifier ports.Notifier,
) Strategy {
	account := NewAccountStrategy(
		AccountConfig{
			Network:      cfg.Network,
			FeeAsset:     cfg.FeeAsset,
			FiatCurrency: cfg.FiatCurrency,
		},
		backend, repo, nil, pricer, notifier,
	).(*accountStrategy)

	return &feeFreeStrategy{accountStrategy: account, feeFreeCfg: cfg}
}

func (s *feeFreeStrategy) EstimateFee(
	_ context.Context, asset string,
) (*domain.FeeResult, error) {
	if s.feeFreeCfg.TokenTransferCost.IsPositive() {
		return &domain.FeeResult{Asset: asset, Amount: s.feeFreeCfg.TokenTransferCost}, nil
	}
	return &domain.FeeResult{Asset: s.feeFreeCfg.FeeAsset, Amount: decimal.Zero}, nil
}
