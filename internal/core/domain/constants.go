package domain

const (
	// PayoutOrderStatusCreated is the status of an order just received from the
	// requesting subdomain and not yet picked up by the engine.
	PayoutOrderStatusCreated = iota
	// PayoutOrderStatusPreparationPending is the status of an order whose hot
	// wallet funding transfer has been requested but not yet confirmed.
	PayoutOrderStatusPreparationPending
	// PayoutOrderStatusPreparationConfirmed is the status of an order whose
	// source wallet is funded and that is ready to be paid out.
	PayoutOrderStatusPreparationConfirmed
	// PayoutOrderStatusPayoutDesignated is the status of an order reserved for
	// an about-to-be-broadcast batch.
	PayoutOrderStatusPayoutDesignated
	// PayoutOrderStatusPayoutUncertain is the status of a designated order
	// whose broadcast outcome is unknown and has been escalated.
	PayoutOrderStatusPayoutUncertain
	// PayoutOrderStatusPayoutPending is the status of an order included in a
	// broadcast transaction awaiting confirmation.
	PayoutOrderStatusPayoutPending
	// PayoutOrderStatusComplete is the terminal status of a confirmed payout.
	PayoutOrderStatusComplete
)

var statusNames = map[int]string{
	PayoutOrderStatusCreated:              "CREATED",
	PayoutOrderStatusPreparationPending:   "PREPARATION_PENDING",
	PayoutOrderStatusPreparationConfirmed: "PREPARATION_CONFIRMED",
	PayoutOrderStatusPayoutDesignated:     "PAYOUT_DESIGNATED",
	PayoutOrderStatusPayoutUncertain:      "PAYOUT_UNCERTAIN",
	PayoutOrderStatusPayoutPending:        "PAYOUT_PENDING",
	PayoutOrderStatusComplete:             "COMPLETE",
}
