package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
)

// TxOutput is one (destination, amount) entry of a batched transaction.
type TxOutput struct {
	Address string
	Amount  decimal.Decimal
}

// TxStatus is the view of a broadcast transaction as reported by a backend.
type TxStatus struct {
	Confirmed     bool
	Confirmations uint64
	Fee           decimal.Decimal
}

// UtxoBackend is the client contract for UTXO-style nodes. One transaction
// pays many outputs, fees are derived from a live fee rate.
type UtxoBackend interface {
	// IsHealthy reports whether the node serving the given context's wallet
	// is in a state safe to dispatch from.
	IsHealthy(ctx context.Context, payoutContext domain.PayoutContext) (bool, error)
	// SendToMany broadcasts one transaction paying all outputs from the
	// context's wallet and returns its txid.
	SendToMany(
		ctx context.Context, payoutContext domain.PayoutContext,
		outputs []TxOutput, feeRate decimal.Decimal,
	) (string, error)
	// GetTransaction returns confirmation status and paid fee of a
	// transaction.
	GetTransaction(
		ctx context.Context, payoutContext domain.PayoutContext, txid string,
	) (*TxStatus, error)
	// EstimateFeeRate returns the current fee rate quote of the node.
	EstimateFeeRate(ctx context.Context) (decimal.Decimal, error)
}

// AccountBackend is the client contract for account-model nodes. Each payout
// is its own transaction ordered by a sequence number.
type AccountBackend interface {
	IsHealthy(ctx context.Context) (bool, error)
	// SendCoin pays out the native coin. A non-nil nonce reuses the given
	// ordering slot (speed-up).
	SendCoin(
		ctx context.Context, address string, amount decimal.Decimal, nonce *uint64,
	) (string, error)
	// SendToken pays out a token identified by its contract.
	SendToken(
		ctx context.Context, tokenContract, address string,
		amount decimal.Decimal, nonce *uint64,
	) (string, error)
	GetTransaction(ctx context.Context, txid string) (*TxStatus, error)
	// GetTxNonce returns the ordering slot used by an already broadcast
	// transaction.
	GetTxNonce(ctx context.Context, txid string) (uint64, error)
	GetGasPrice(ctx context.Context) (decimal.Decimal, error)
	GetGasLimit(ctx context.Context, tokenContract string) (decimal.Decimal, error)
	// GetWalletAddress returns the address of the hot wallet payouts are sent
	// from, used as destination for preparation transfers.
	GetWalletAddress(ctx context.Context) (string, error)
}
