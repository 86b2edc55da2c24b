package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource quotes an asset against a fiat currency. It is used solely to
// annotate completed fees in the reference fiat currency, a failing quote
// never blocks settlement.
type PriceSource interface {
	GetPrice(ctx context.Context, asset, fiatCurrency string) (decimal.Decimal, error)
}
