package payout

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/lock"
)

const (
	processOrdersJob     = "process-payout-orders"
	processOrdersTimeout = 30 * time.Minute

	// newOrderDebounce delays picking up Created orders until upstream
	// stopped inserting, so one batch covers a whole burst.
	newOrderDebounce = 5 * time.Second
)

// Service is the payout orchestration engine. It owns the order ledger and
// drives every order through its lifecycle by routing batches of actionable
// orders to the strategies registered for their networks. It is invoked
// periodically by an external scheduler and keeps no event loop of its own.
type Service struct {
	repoManager ports.RepoManager
	registry    *StrategyRegistry
	notifier    ports.Notifier
	guard       *lock.Guard
}

// NewService returns the orchestration engine.
func NewService(
	repoManager ports.RepoManager, registry *StrategyRegistry,
	notifier ports.Notifier,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if registry == nil {
		return nil, fmt.Errorf("missing strategy registry")
	}
	if notifier == nil {
		return nil, fmt.Errorf("missing notifier")
	}

	return &Service{
		repoManager: repoManager,
		registry:    registry,
		notifier:    notifier,
		guard:       lock.NewGuard(),
	}, nil
}

// Registry exposes the strategy registry so backends can register and
// withdraw their strategies as they come up and down.
func (s *Service) Registry() *StrategyRegistry {
	return s.registry
}

// DoPayout validates and persists a new payout order in Created status. The
// order is picked up by the next processing cycle.
func (s *Service) DoPayout(ctx context.Context, req PayoutRequest) (*domain.PayoutOrder, error) {
	order, err := domain.NewPayoutOrder(
		req.Context, req.CorrelationId, req.Network, req.AssetKind,
		req.Asset, req.Amount, req.DestinationAddress,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repoManager.PayoutOrderRepository().AddOrder(ctx, order); err != nil {
		return nil, fmt.Errorf(
			"error while creating payout order for context %s and correlation id %s: %w",
			req.Context, req.CorrelationId, err,
		)
	}
	return order, nil
}

// CheckOrderCompletion reports the progress of the order created for the
// given context and correlation id.
func (s *Service) CheckOrderCompletion(
	ctx context.Context, payoutContext domain.PayoutContext, correlationId string,
) (*CompletionStatus, error) {
	order, err := s.repoManager.PayoutOrderRepository().GetOrderByCorrelation(
		ctx, payoutContext, correlationId,
	)
	if err != nil {
		return nil, err
	}

	return &CompletionStatus{
		IsComplete: order.IsComplete(),
		PayoutTxId: order.PayoutTxId,
		PayoutFee: domain.FeeResult{
			Asset:  order.PayoutFeeAsset,
			Amount: order.PayoutFeeAmount,
		},
	}, nil
}

// EstimateFee quotes the current payout fee for an asset on a network.
func (s *Service) EstimateFee(
	ctx context.Context, network string, assetKind domain.AssetKind, asset string,
) (*domain.FeeResult, error) {
	strategy, err := s.registry.Resolve(network, assetKind)
	if err != nil {
		return nil, err
	}
	return strategy.EstimateFee(ctx, asset)
}

// SpeedupTransaction re-drives a single pending order through its strategy,
// rebroadcasting it at the same ordering slot where supported.
func (s *Service) SpeedupTransaction(ctx context.Context, orderId string) error {
	order, err := s.repoManager.PayoutOrderRepository().GetOrder(ctx, orderId)
	if err != nil {
		return err
	}

	strategy, err := s.registry.Resolve(order.Network, order.AssetKind)
	if err != nil {
		return err
	}
	return strategy.Dispatch(ctx, []*domain.PayoutOrder{order})
}

// ProcessOrders runs one full processing cycle: poll pending preparations and
// payouts, prepare new orders, dispatch confirmed ones, and escalate orders
// stuck in designation. Overlapping cycles are prevented by a job guard with
// timeout auto-release.
func (s *Service) ProcessOrders(ctx context.Context) error {
	if !s.guard.Acquire(processOrdersJob, processOrdersTimeout) {
		log.Debug("payout processing cycle already running, skipping")
		return nil
	}
	defer s.guard.Release(processOrdersJob)

	s.checkPreparationCompletion(ctx)
	s.checkPayoutCompletion(ctx)
	s.prepareNewOrders(ctx)
	s.payoutOrders(ctx)
	s.processDesignatedOrders(ctx)
	return nil
}

func (s *Service) checkPreparationCompletion(ctx context.Context) {
	orders, err := s.ordersForStatus(ctx, domain.PayoutOrderStatusPreparationPending)
	if err != nil {
		log.WithError(err).Error("failed to fetch orders pending preparation")
		return
	}
	orders = filterOrders(orders, func(o *domain.PayoutOrder) bool {
		return len(o.TransferTxId) > 0
	})

	s.forEachStrategy(ctx, orders, "checking preparation completion",
		func(ctx context.Context, strategy Strategy, group []*domain.PayoutOrder) error {
			return strategy.CheckPreparation(ctx, group)
		},
	)

	confirmed := filterOrders(orders, func(o *domain.PayoutOrder) bool {
		return o.Status.Code == domain.PayoutOrderStatusPreparationConfirmed
	})
	if len(confirmed) > 0 {
		log.Infof("preparation confirmed for payout orders %v", orderIds(confirmed))
	}
}

func (s *Service) checkPayoutCompletion(ctx context.Context) {
	orders, err := s.ordersForStatus(
		ctx,
		domain.PayoutOrderStatusPayoutPending,
		domain.PayoutOrderStatusPayoutUncertain,
	)
	if err != nil {
		log.WithError(err).Error("failed to fetch orders pending payout")
		return
	}
	orders = filterOrders(orders, func(o *domain.PayoutOrder) bool {
		return len(o.PayoutTxId) > 0
	})

	s.forEachStrategy(ctx, orders, "checking payout completion",
		func(ctx context.Context, strategy Strategy, group []*domain.PayoutOrder) error {
			return strategy.CheckCompletion(ctx, group)
		},
	)

	completed := filterOrders(orders, func(o *domain.PayoutOrder) bool {
		return o.IsComplete()
	})
	if len(completed) > 0 {
		log.Infof("payout complete for orders %v", orderIds(completed))
	}
}

func (s *Service) prepareNewOrders(ctx context.Context) {
	stable, err := s.waitForStableInput(ctx)
	if err != nil {
		log.WithError(err).Error("failed to check for stable order input")
		return
	}
	if !stable {
		return
	}

	orders, err := s.ordersForStatus(ctx, domain.PayoutOrderStatusCreated)
	if err != nil {
		log.WithError(err).Error("failed to fetch created orders")
		return
	}

	s.forEachStrategy(ctx, orders, "preparing new orders",
		func(ctx context.Context, strategy Strategy, group []*domain.PayoutOrder) error {
			return strategy.Prepare(ctx, group)
		},
	)

	prepared := filterOrders(orders, func(o *domain.PayoutOrder) bool {
		return o.Status.Code != domain.PayoutOrderStatusCreated
	})
	if len(prepared) > 0 {
		log.Infof("started preparation of payout orders %v", orderIds(prepared))
	}
}

func (s *Service) payoutOrders(ctx context.Context) {
	orders, err := s.ordersForStatus(ctx, domain.PayoutOrderStatusPreparationConfirmed)
	if err != nil {
		log.WithError(err).Error("failed to fetch orders ready for payout")
		return
	}

	s.forEachStrategy(ctx, orders, "paying out orders",
		func(ctx context.Context, strategy Strategy, group []*domain.PayoutOrder) error {
			return strategy.Dispatch(ctx, group)
		},
	)
}

// processDesignatedOrders escalates orders still designated at the end of the
// cycle: their dispatch neither confirmed nor rolled back, so a human must
// reconcile before anything is rebroadcast.
func (s *Service) processDesignatedOrders(ctx context.Context) {
	orders, err := s.ordersForStatus(ctx, domain.PayoutOrderStatusPayoutDesignated)
	if err != nil {
		log.WithError(err).Error("failed to fetch designated orders")
		return
	}
	if len(orders) <= 0 {
		return
	}

	msg := fmt.Sprintf(
		"payout orders %v stuck in designation with unknown broadcast status",
		orderIds(orders),
	)
	log.Error(msg)

	correlationId := ""
	for _, order := range orders {
		correlationId += fmt.Sprintf("|%s&%s|", order.Id, order.Context)
	}
	if err := s.notifier.SendAlert("Payout Error", []string{msg}, correlationId); err != nil {
		log.WithError(err).Error("failed to send payout error alert")
	}

	repo := s.repoManager.PayoutOrderRepository()
	for _, order := range orders {
		if err := applyTransition(ctx, repo, order, func(o *domain.PayoutOrder) error {
			return o.MarkUncertain()
		}); err != nil {
			log.WithError(err).Errorf("failed to mark order %s uncertain", order.Id)
		}
	}
}

// waitForStableInput reports whether the newest order is old enough for the
// prepare pass to start batching.
func (s *Service) waitForStableInput(ctx context.Context) (bool, error) {
	latest, err := s.repoManager.PayoutOrderRepository().GetLatestOrder(ctx)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	return time.Since(time.Unix(latest.CreationTime, 0)) > newOrderDebounce, nil
}

// forEachStrategy routes the orders to their owning strategies and runs the
// given operation per strategy. Independent networks are processed in
// parallel, failures are logged and never stop the other networks.
func (s *Service) forEachStrategy(
	ctx context.Context, orders []*domain.PayoutOrder, operation string,
	run func(ctx context.Context, strategy Strategy, group []*domain.PayoutOrder) error,
) {
	keys, groups := groupByStrategy(orders)

	g, gCtx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		group := groups[key]

		strategy, err := s.registry.Resolve(key.Network, key.AssetKind)
		if err != nil {
			log.WithError(err).Warnf(
				"skipping %d payout order(s) while %s", len(group), operation,
			)
			continue
		}

		g.Go(func() error {
			if err := run(gCtx, strategy, group); err != nil {
				log.WithError(err).Errorf(
					"error while %s for orders %v", operation, orderIds(group),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// LogStats prints a summary of the ledger's per-status order counts.
func (s *Service) LogStats(ctx context.Context) {
	counts := make(map[string]int)
	for _, code := range []int{
		domain.PayoutOrderStatusCreated,
		domain.PayoutOrderStatusPreparationPending,
		domain.PayoutOrderStatusPreparationConfirmed,
		domain.PayoutOrderStatusPayoutDesignated,
		domain.PayoutOrderStatusPayoutUncertain,
		domain.PayoutOrderStatusPayoutPending,
		domain.PayoutOrderStatusComplete,
	} {
		orders, err := s.ordersForStatus(ctx, code)
		if err != nil {
			log.WithError(err).Warn("failed to collect payout stats")
			return
		}
		counts[domain.PayoutOrderStatus{Code: code}.String()] = len(orders)
	}
	log.Infof("payout orders by status: %v", counts)
}

func (s *Service) ordersForStatus(
	ctx context.Context, statusCodes ...int,
) ([]*domain.PayoutOrder, error) {
	return s.repoManager.PayoutOrderRepository().GetOrdersForStatus(ctx, statusCodes...)
}

func groupByStrategy(
	orders []*domain.PayoutOrder,
) ([]domain.StrategyKey, map[domain.StrategyKey][]*domain.PayoutOrder) {
	keys := make([]domain.StrategyKey, 0)
	groups := make(map[domain.StrategyKey][]*domain.PayoutOrder)
	for _, order := range orders {
		key := order.StrategyKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], order)
	}
	return keys, groups
}

func filterOrders(
	orders []*domain.PayoutOrder, keep func(o *domain.PayoutOrder) bool,
) []*domain.PayoutOrder {
	filtered := make([]*domain.PayoutOrder, 0, len(orders))
	for _, order := range orders {
		if keep(order) {
			filtered = append(filtered, order)
		}
	}
	return filtered
}
