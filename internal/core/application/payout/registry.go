package payout

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/payout-network/payoutd/internal/core/domain"
)

// StrategyRegistry resolves a (network, assetKind) key to the strategy owning
// it. It is constructed once at process start and populated by each strategy's
// own readiness hook, so a backend failing to initialize simply never
// registers and degrades that single network without crashing the process.
type StrategyRegistry struct {
	mtx        sync.RWMutex
	strategies map[domain.StrategyKey]Strategy
}

// NewStrategyRegistry returns an empty registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{strategies: make(map[domain.StrategyKey]Strategy)}
}

// Register makes the given strategy the owner of the key, replacing any
// previous owner.
func (r *StrategyRegistry) Register(key domain.StrategyKey, strategy Strategy) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.strategies[key]; ok {
		log.Warnf("replacing payout strategy registered for %s", key)
	}
	r.strategies[key] = strategy
}

// Unregister withdraws the strategy owning the key, if any.
func (r *StrategyRegistry) Unregister(key domain.StrategyKey) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	delete(r.strategies, key)
}

// Resolve returns the strategy owning the (network, assetKind) key or a
// StrategyNotFoundError carrying the key.
func (r *StrategyRegistry) Resolve(
	network string, assetKind domain.AssetKind,
) (Strategy, error) {
	key := domain.StrategyKey{Network: network, AssetKind: assetKind}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	strategy, ok := r.strategies[key]
	if !ok {
		return nil, &StrategyNotFoundError{Key: key}
	}
	return strategy, nil
}

// Keys returns the currently registered keys.
func (r *StrategyRegistry) Keys() []domain.StrategyKey {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	keys := make([]domain.StrategyKey, 0, len(r.strategies))
	for key := range r.strategies {
		keys = append(keys, key)
	}
	return keys
}
