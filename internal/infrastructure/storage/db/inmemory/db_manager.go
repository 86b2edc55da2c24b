package inmemory

import (
	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
)

// RepoManager is the in-memory implementation of ports.RepoManager, used in
// tests and for local development.
type RepoManager struct {
	payoutOrderRepository domain.PayoutOrderRepository
}

func NewRepoManager() ports.RepoManager {
	return &RepoManager{
		payoutOrderRepository: NewPayoutOrderRepositoryImpl(),
	}
}

func (d *RepoManager) PayoutOrderRepository() domain.PayoutOrderRepository {
	return d.payoutOrderRepository
}

func (d *RepoManager) Close() {}
