package payout

import (
	"errors"
	"fmt"

	"github.com/payout-network/payoutd/internal/core/domain"
)

var (
	// ErrZeroMaxGroupSize is thrown when grouping with a zero group size.
	ErrZeroMaxGroupSize = errors.New("max group size for payout cannot be 0")
	// ErrMixedAssetGroup is thrown when a batch spans more than one asset.
	// Grouping across assets is a programmer error, not a runtime condition.
	ErrMixedAssetGroup = errors.New("cannot group payout orders of different assets")
	// ErrMixedOrderGroup is thrown when a preparation batch mixes assets,
	// statuses or contexts.
	ErrMixedOrderGroup = errors.New("cannot prepare payout orders of different assets, statuses or contexts")
	// ErrSpeedupNotSupported is thrown when a second broadcast is requested
	// for an order on a network without the speed-up feature.
	ErrSpeedupNotSupported = errors.New("transaction speed-up is not supported for this network")
	// ErrRoundingMismatchTooHigh is thrown when the drift between promised
	// and aggregated totals exceeds what repeated rounding can explain.
	ErrRoundingMismatchTooHigh = errors.New("aggregated payout total drifts too far from order total")
)

// StrategyNotFoundError is returned when no strategy is registered for a
// lookup key. A payout that cannot be routed must surface loudly.
type StrategyNotFoundError struct {
	Key domain.StrategyKey
}

func (e *StrategyNotFoundError) Error() string {
	return fmt.Sprintf("no payout strategy registered for %s", e.Key)
}
