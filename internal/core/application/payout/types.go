package payout

import (
	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
)

// PayoutRequest is the programmatic input of the engine: one request from an
// upstream business process to pay out a fixed amount.
type PayoutRequest struct {
	Context            domain.PayoutContext
	CorrelationId      string
	Network            string
	AssetKind          domain.AssetKind
	Asset              string
	Amount             decimal.Decimal
	DestinationAddress string
}

// CompletionStatus is the upstream view of an order's progress.
type CompletionStatus struct {
	IsComplete bool
	PayoutTxId string
	PayoutFee  domain.FeeResult
}
