package ports

import "github.com/payout-network/payoutd/internal/core/domain"

// RepoManager gives access to the repositories of all stored entities and
// manages the lifecycle of the underlying database.
type RepoManager interface {
	PayoutOrderRepository() domain.PayoutOrderRepository
	Close()
}
