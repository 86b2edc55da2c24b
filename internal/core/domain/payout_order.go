package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutContext tags the upstream business process that requested a payout.
// Orders of different contexts are never mixed into the same batch because
// they draw from different wallets.
type PayoutContext string

const (
	PayoutContextBuyCrypto     PayoutContext = "buy_crypto"
	PayoutContextStakingReward PayoutContext = "staking_reward"
	PayoutContextRefund        PayoutContext = "refund"
)

// AssetKind distinguishes the native coin of a network from tokens issued on
// top of it. Together with the network name it selects the owning strategy.
type AssetKind string

const (
	AssetKindCoin  AssetKind = "coin"
	AssetKindToken AssetKind = "token"
)

// PayoutOrderStatus represents the position of an order in its lifecycle.
type PayoutOrderStatus struct {
	Code int
}

func (s PayoutOrderStatus) String() string {
	if name, ok := statusNames[s.Code]; ok {
		return name
	}
	return "UNDEFINED"
}

// FeeResult is the (asset, amount) pair returned by fee estimation and by
// completion checking. It is never persisted on its own, only folded into an
// order's fee fields.
type FeeResult struct {
	Asset  string
	Amount decimal.Decimal
}

// PayoutOrder is the unit of work and permanent settlement record: one request
// to move a fixed amount of an asset to a destination address on a network.
// It is mutated exclusively through the transition methods below, which
// enforce the forward-only state machine.
type PayoutOrder struct {
	Id                   string
	Context              PayoutContext
	CorrelationId        string
	Network              string
	AssetKind            AssetKind
	Asset                string
	Amount               decimal.Decimal
	DestinationAddress   string
	Status               PayoutOrderStatus
	TransferTxId         string
	PayoutTxId           string
	PreparationFeeAsset  string
	PreparationFeeAmount decimal.Decimal
	PayoutFeeAsset       string
	PayoutFeeAmount      decimal.Decimal
	PayoutFeeChf         decimal.Decimal
	CreationTime         int64
}

// NewPayoutOrder returns a Created order with a new id after validating the
// amount and destination.
func NewPayoutOrder(
	context PayoutContext, correlationId, network string, assetKind AssetKind,
	asset string, amount decimal.Decimal, destinationAddress string,
) (*PayoutOrder, error) {
	if !amount.IsPositive() {
		return nil, ErrOrderInvalidAmount
	}
	if len(destinationAddress) <= 0 {
		return nil, ErrOrderMissingDestination
	}

	return &PayoutOrder{
		Id:                 uuid.New().String(),
		Context:            context,
		CorrelationId:      correlationId,
		Network:            network,
		AssetKind:          assetKind,
		Asset:              asset,
		Amount:             amount,
		DestinationAddress: destinationAddress,
		Status:             PayoutOrderStatus{Code: PayoutOrderStatusCreated},
		CreationTime:       time.Now().Unix(),
	}, nil
}

// PendingPreparation brings a Created order to PreparationPending, recording
// the id of the liquidity transfer that funds the hot wallet.
func (o *PayoutOrder) PendingPreparation(transferTxId string) error {
	if o.Status.Code != PayoutOrderStatusCreated {
		return ErrOrderMustBeCreated
	}

	o.TransferTxId = transferTxId
	o.Status.Code = PayoutOrderStatusPreparationPending
	return nil
}

// ConfirmPreparation brings an order to PreparationConfirmed. Networks that
// pay directly from an always-funded wallet confirm straight from Created.
func (o *PayoutOrder) ConfirmPreparation() error {
	switch o.Status.Code {
	case PayoutOrderStatusCreated, PayoutOrderStatusPreparationPending:
		o.Status.Code = PayoutOrderStatusPreparationConfirmed
		return nil
	default:
		return ErrOrderMustBePreparationPending
	}
}

// RecordPreparationFee sets the fee paid for funding the hot wallet.
func (o *PayoutOrder) RecordPreparationFee(asset string, amount decimal.Decimal) {
	o.PreparationFeeAsset = asset
	o.PreparationFeeAmount = amount
}

// Designate reserves a PreparationConfirmed order for an about-to-be-broadcast
// batch.
func (o *PayoutOrder) Designate() error {
	if o.Status.Code != PayoutOrderStatusPreparationConfirmed {
		return ErrOrderMustBePreparationConfirmed
	}

	o.Status.Code = PayoutOrderStatusPayoutDesignated
	return nil
}

// RollbackDesignation is the single backward edge of the state machine. It is
// only legal while the order provably has no broadcast transaction.
func (o *PayoutOrder) RollbackDesignation() error {
	if o.Status.Code != PayoutOrderStatusPayoutDesignated {
		return ErrOrderMustBeDesignated
	}
	if len(o.PayoutTxId) > 0 {
		return ErrOrderRollbackAfterBroadcast
	}

	o.Status.Code = PayoutOrderStatusPreparationConfirmed
	return nil
}

// PendingPayout brings a designated order to PayoutPending, recording the
// broadcast txid. A txid that is already set is immutable until completion.
func (o *PayoutOrder) PendingPayout(payoutTxId string) error {
	if o.Status.Code != PayoutOrderStatusPayoutDesignated &&
		o.Status.Code != PayoutOrderStatusPayoutUncertain {
		return ErrOrderMustBeDesignated
	}
	if len(o.PayoutTxId) > 0 && o.PayoutTxId != payoutTxId {
		return ErrOrderTxIdImmutable
	}

	o.PayoutTxId = payoutTxId
	o.Status.Code = PayoutOrderStatusPayoutPending
	return nil
}

// SpeedupPayout replaces the txid of a pending payout that was rebroadcast at
// the same ordering slot with a higher fee. This is the only path allowed to
// change a txid before completion and it is feature-gated by the strategies.
func (o *PayoutOrder) SpeedupPayout(payoutTxId string) error {
	if o.Status.Code != PayoutOrderStatusPayoutPending {
		return ErrOrderMustBePendingPayout
	}
	if len(o.PayoutTxId) <= 0 {
		return ErrOrderMustBeDesignated
	}

	o.PayoutTxId = payoutTxId
	return nil
}

// MarkUncertain flags a designated order whose broadcast outcome is unknown.
// Uncertain orders are never retried with a fresh broadcast, only escalated.
func (o *PayoutOrder) MarkUncertain() error {
	if o.Status.Code != PayoutOrderStatusPayoutDesignated {
		return ErrOrderMustBeDesignated
	}

	o.Status.Code = PayoutOrderStatusPayoutUncertain
	return nil
}

// Complete closes the ledger entry, setting the payout fee fields atomically
// with the transition. Completing an already Complete order is a no-op.
func (o *PayoutOrder) Complete(feeAsset string, feeAmount, feeChf decimal.Decimal) error {
	if o.Status.Code == PayoutOrderStatusComplete {
		return nil
	}
	if o.Status.Code != PayoutOrderStatusPayoutPending &&
		o.Status.Code != PayoutOrderStatusPayoutUncertain {
		return ErrOrderMustBePendingPayout
	}

	o.PayoutFeeAsset = feeAsset
	o.PayoutFeeAmount = feeAmount
	o.PayoutFeeChf = feeChf
	o.Status.Code = PayoutOrderStatusComplete
	return nil
}

// IsComplete returns whether the order reached its terminal status.
func (o *PayoutOrder) IsComplete() bool {
	return o.Status.Code == PayoutOrderStatusComplete
}

// StrategyKey returns the (network, assetKind) pair that routes the order to
// its owning strategy.
func (o *PayoutOrder) StrategyKey() StrategyKey {
	return StrategyKey{Network: o.Network, AssetKind: o.AssetKind}
}

// StrategyKey identifies the strategy owning a (network, assetKind) pair.
type StrategyKey struct {
	Network   string
	AssetKind AssetKind
}

func (k StrategyKey) String() string {
	return k.Network + "/" + string(k.AssetKind)
}
