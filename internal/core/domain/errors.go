package domain

import "errors"

var (
	// ErrOrderInvalidAmount is thrown when creating an order with a zero or
	// negative amount.
	ErrOrderInvalidAmount = errors.New("payout amount must be positive")
	// ErrOrderMissingDestination ...
	ErrOrderMissingDestination = errors.New("payout destination address must not be empty")
	// ErrOrderMustBeCreated is thrown when starting preparation of an order
	// that already left the Created status.
	ErrOrderMustBeCreated = errors.New("payout order must be in Created status to start preparation")
	// ErrOrderMustBePreparationPending ...
	ErrOrderMustBePreparationPending = errors.New("payout order must be in PreparationPending status to confirm preparation")
	// ErrOrderMustBePreparationConfirmed is thrown when designating an order
	// that is not ready for payout.
	ErrOrderMustBePreparationConfirmed = errors.New("payout order must be in PreparationConfirmed status to be designated")
	// ErrOrderMustBeDesignated is thrown when rolling back or broadcasting an
	// order that was never designated.
	ErrOrderMustBeDesignated = errors.New("payout order must be in PayoutDesignated status")
	// ErrOrderMustBePendingPayout is thrown when completing an order that has
	// no broadcast transaction to confirm.
	ErrOrderMustBePendingPayout = errors.New("payout order must be in PayoutPending or PayoutUncertain status to be completed")
	// ErrOrderTxIdImmutable is thrown when trying to overwrite the payout
	// transaction id of an order. A broadcast txid is never replaced, retries
	// must go through the speed-up path.
	ErrOrderTxIdImmutable = errors.New("payout txid is already set and cannot be overwritten")
	// ErrOrderRollbackAfterBroadcast is thrown when rolling back the
	// designation of an order that already carries a txid. Rollback is only
	// safe when dispatch provably did not occur.
	ErrOrderRollbackAfterBroadcast = errors.New("cannot rollback designation of a broadcast payout order")
	// ErrOrderNotFound ...
	ErrOrderNotFound = errors.New("payout order not found")
)
