package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/payout-network/payoutd/internal/config"
	"github.com/payout-network/payoutd/internal/core/application/payout"
	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/internal/infrastructure/backend/bitcoind"
	"github.com/payout-network/payoutd/internal/infrastructure/backend/evm"
	lognotifier "github.com/payout-network/payoutd/internal/infrastructure/notification/log"
	webhooknotifier "github.com/payout-network/payoutd/internal/infrastructure/notification/webhook"
	krakenpricer "github.com/payout-network/payoutd/internal/infrastructure/pricing/kraken"
	dbbadger "github.com/payout-network/payoutd/internal/infrastructure/storage/db/badger"
	"github.com/payout-network/payoutd/internal/infrastructure/storage/db/inmemory"
	httptreasury "github.com/payout-network/payoutd/internal/infrastructure/treasury/http"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	// the notifier setup may bail out with Fatal, keep it before opening the db
	notifier := newNotifier()
	pricer := krakenpricer.NewService(config.GetString(config.PricingURLKey))

	repoManager, err := newRepoManager()
	if err != nil {
		log.WithError(err).Fatal("error while opening db")
	}
	defer repoManager.Close()

	registry := payout.NewStrategyRegistry()
	for _, network := range config.GetNetworks() {
		if err := registerNetwork(registry, network, repoManager, pricer, notifier); err != nil {
			// Fatal exits before deferred closes run
			repoManager.Close()
			log.WithError(err).Fatalf("error while setting up network %s", network)
		}
	}

	svc, err := payout.NewService(repoManager, registry, notifier)
	if err != nil {
		repoManager.Close()
		log.WithError(err).Fatal("error while setting up payout service")
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(
		config.GetDuration(config.ProcessIntervalKey),
	).Do(func() {
		if err := svc.ProcessOrders(context.Background()); err != nil {
			log.WithError(err).Error("payout cycle failed")
		}
	}); err != nil {
		repoManager.Close()
		log.WithError(err).Fatal("error while scheduling payout cycle")
	}
	if _, err := scheduler.Every(
		config.GetDuration(config.StatsIntervalKey),
	).Do(func() {
		svc.LogStats(context.Background())
	}); err != nil {
		repoManager.Close()
		log.WithError(err).Fatal("error while scheduling stats")
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	log.Infof("payout daemon up for networks %v", registry.Keys())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down")
}

func newRepoManager() (ports.RepoManager, error) {
	if config.GetString(config.DBTypeKey) == "inmemory" {
		return inmemory.NewRepoManager(), nil
	}

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	if err := os.MkdirAll(dbDir, 0700); err != nil {
		return nil, err
	}
	return dbbadger.NewRepoManager(dbDir, log.New())
}

func newNotifier() ports.Notifier {
	endpoint := config.GetString(config.AlertEndpointKey)
	if len(endpoint) <= 0 {
		log.Warn("no alert endpoint configured, alerts go to the log only")
		return lognotifier.NewLogNotifier()
	}

	notifier, err := webhooknotifier.NewWebhookNotifier(
		endpoint, config.GetString(config.AlertSecretKey),
	)
	if err != nil {
		log.WithError(err).Fatal("error while setting up alert webhook")
	}
	return notifier
}

// registerNetwork builds the backend and strategy of a configured network and
// registers it for the asset kinds the family serves.
func registerNetwork(
	registry *payout.StrategyRegistry, network string,
	repoManager ports.RepoManager, pricer ports.PriceSource,
	notifier ports.Notifier,
) error {
	repo := repoManager.PayoutOrderRepository()
	fiatCurrency := config.GetString(config.FiatCurrencyKey)
	feeAsset := config.GetNetworkString(network, config.NetFeeAssetKey)
	family := config.GetNetworkString(network, config.NetFamilyKey)

	switch family {
	case "utxo":
		backend, err := bitcoind.NewService(bitcoind.Config{
			RPCURL:           config.GetNetworkString(network, config.NetRPCURLKey),
			RPCUser:          config.GetNetworkString(network, config.NetRPCUserKey),
			RPCPass:          config.GetNetworkString(network, config.NetRPCPassKey),
			Wallets:          contextWallets(network),
			MinConfirmations: uint64(config.GetNetworkInt(network, config.NetMinConfirmationsKey)),
		})
		if err != nil {
			return err
		}

		strategy := payout.NewUtxoStrategy(payout.UtxoConfig{
			Network:                  network,
			FeeAsset:                 feeAsset,
			MaxGroupSize:             config.GetNetworkInt(network, config.NetMaxGroupSizeKey),
			AverageTxSizeVBytes:      int64(config.GetNetworkInt(network, config.NetAvgTxSizeKey)),
			AllowUnconfirmedInputs:   config.GetNetworkBool(network, config.NetAllowUnconfirmedKey),
			UnconfirmedFeeMultiplier: feeMultiplier(network),
			BinaryConfirmation:       config.GetNetworkBool(network, config.NetBinaryConfirmationKey),
			FiatCurrency:             fiatCurrency,
		}, backend, repo, pricer, notifier)

		registry.Register(
			domain.StrategyKey{Network: network, AssetKind: domain.AssetKindCoin},
			strategy,
		)
		return nil
	case "account":
		backend, err := evm.NewService(evm.Config{
			RPCURL:        config.GetNetworkString(network, config.NetRPCURLKey),
			WalletAddress: config.GetNetworkString(network, config.NetWalletAddressKey),
		})
		if err != nil {
			return err
		}

		treasury, err := networkTreasury(network)
		if err != nil {
			return err
		}

		strategy := payout.NewAccountStrategy(payout.AccountConfig{
			Network:        network,
			FeeAsset:       feeAsset,
			SpeedupEnabled: config.GetNetworkBool(network, config.NetSpeedupEnabledKey),
			FiatCurrency:   fiatCurrency,
		}, backend, repo, treasury, pricer, notifier)

		registry.Register(
			domain.StrategyKey{Network: network, AssetKind: domain.AssetKindCoin},
			strategy,
		)
		registry.Register(
			domain.StrategyKey{Network: network, AssetKind: domain.AssetKindToken},
			strategy,
		)
		return nil
	case "feefree":
		backend, err := evm.NewService(evm.Config{
			RPCURL:        config.GetNetworkString(network, config.NetRPCURLKey),
			WalletAddress: config.GetNetworkString(network, config.NetWalletAddressKey),
		})
		if err != nil {
			return err
		}

		strategy := payout.NewFeeFreeStrategy(payout.FeeFreeConfig{
			Network:           network,
			FeeAsset:          feeAsset,
			TokenTransferCost: config.GetNetworkDecimal(network, config.NetTokenTransferCostKey),
			FiatCurrency:      fiatCurrency,
		}, backend, repo, pricer, notifier)

		registry.Register(
			domain.StrategyKey{Network: network, AssetKind: domain.AssetKindCoin},
			strategy,
		)
		registry.Register(
			domain.StrategyKey{Network: network, AssetKind: domain.AssetKindToken},
			strategy,
		)
		return nil
	default:
		return fmt.Errorf("unknown strategy family %s", family)
	}
}

func networkTreasury(network string) (ports.Treasury, error) {
	treasuryURL := config.GetNetworkString(network, config.NetTreasuryURLKey)
	if len(treasuryURL) <= 0 {
		return nil, nil
	}
	return httptreasury.NewService(
		treasuryURL, config.GetNetworkString(network, config.NetTreasuryAPIKeyKey),
	)
}

func contextWallets(network string) map[domain.PayoutContext]string {
	wallets := make(map[domain.PayoutContext]string)
	for payoutContext, key := range map[domain.PayoutContext]string{
		domain.PayoutContextBuyCrypto:     config.NetWalletBuyCryptoKey,
		domain.PayoutContextStakingReward: config.NetWalletStakingRewardKey,
		domain.PayoutContextRefund:        config.NetWalletRefundKey,
	} {
		if wallet := config.GetNetworkString(network, key); len(wallet) > 0 {
			wallets[payoutContext] = wallet
		}
	}
	return wallets
}

func feeMultiplier(network string) decimal.Decimal {
	multiplier := config.GetNetworkDecimal(network, config.NetFeeMultiplierKey)
	if !multiplier.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return multiplier
}
