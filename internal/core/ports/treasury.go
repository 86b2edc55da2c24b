package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrTransferNotRequired is returned by a Treasury when the hot wallet
// already holds enough liquidity, letting preparation auto-complete.
var ErrTransferNotRequired = errors.New("liquidity transfer not required")

// Treasury moves liquidity from the shared treasury into a hot wallet before
// payout. Only networks with a preparation phase use it.
type Treasury interface {
	TransferLiquidity(
		ctx context.Context, asset string, amount decimal.Decimal, destination string,
	) (string, error)
	CheckTransferCompletion(ctx context.Context, transferTxId string) (bool, error)
}
