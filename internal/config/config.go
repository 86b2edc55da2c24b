package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory storing the order ledger.
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported.
	DBTypeKey = "DB_TYPE"
	// ProcessIntervalKey is the interval in seconds between two payout
	// processing cycles.
	ProcessIntervalKey = "PROCESS_INTERVAL"
	// StatsIntervalKey defines the interval in seconds for printing basic
	// payout statistics.
	StatsIntervalKey = "STATS_INTERVAL"
	// NetworksKey is the comma-separated list of networks to bring up.
	NetworksKey = "NETWORKS"
	// FiatCurrencyKey is the reference fiat currency completed fees are
	// annotated in.
	FiatCurrencyKey = "FIAT_CURRENCY"
	// PricingURLKey is the base url of the public price ticker.
	PricingURLKey = "PRICING_URL"
	// AlertEndpointKey is the ops webhook non-recoverable errors are posted to.
	AlertEndpointKey = "ALERT_ENDPOINT"
	// AlertSecretKey signs alert payloads when set.
	AlertSecretKey = "ALERT_SECRET"

	// Per-network keys, read through the network-scoped getters as
	// PAYOUT_<NETWORK>_<KEY>.

	// NetRPCURLKey is the node rpc endpoint of a network.
	NetRPCURLKey = "RPC_URL"
	// NetRPCUserKey / NetRPCPassKey authenticate against the node.
	NetRPCUserKey = "RPC_USER"
	NetRPCPassKey = "RPC_PASS"
	// NetFamilyKey selects the strategy family (utxo, account, feefree).
	NetFamilyKey = "FAMILY"
	// NetFeeAssetKey is the native coin of the network.
	NetFeeAssetKey = "FEE_ASSET"
	// NetMaxGroupSizeKey bounds orders per batched transaction.
	NetMaxGroupSizeKey = "MAX_GROUP_SIZE"
	// NetAvgTxSizeKey is the tx size in vbytes assumed for fee quotes.
	NetAvgTxSizeKey = "AVG_TX_SIZE"
	// NetAllowUnconfirmedKey enables spending unconfirmed inputs.
	NetAllowUnconfirmedKey = "ALLOW_UNCONFIRMED"
	// NetFeeMultiplierKey compensates unconfirmed spending with a higher rate.
	NetFeeMultiplierKey = "FEE_MULTIPLIER"
	// NetBinaryConfirmationKey marks present/absent confirmation networks.
	NetBinaryConfirmationKey = "BINARY_CONFIRMATION"
	// NetSpeedupEnabledKey gates same-slot rebroadcasting.
	NetSpeedupEnabledKey = "SPEEDUP_ENABLED"
	// NetWalletAddressKey is the payout account of account-model networks.
	NetWalletAddressKey = "WALLET_ADDRESS"
	// NetTreasuryURLKey enables the hot wallet funding phase when set, pointing
	// at the liquidity management API.
	NetTreasuryURLKey = "TREASURY_URL"
	// NetTreasuryAPIKeyKey authenticates against the liquidity management API.
	NetTreasuryAPIKeyKey = "TREASURY_API_KEY"
	// NetTokenTransferCostKey is the fixed token transfer cost of reverse-gas
	// networks, denominated in the transferred asset.
	NetTokenTransferCostKey = "TOKEN_TRANSFER_COST"
	// NetMinConfirmationsKey a payout needs to count as complete.
	NetMinConfirmationsKey = "MIN_CONFIRMATIONS"
	// NetWalletBuyCryptoKey / NetWalletStakingRewardKey / NetWalletRefundKey map
	// payout contexts to node wallets on utxo networks.
	NetWalletBuyCryptoKey     = "WALLET_BUY_CRYPTO"
	NetWalletStakingRewardKey = "WALLET_STAKING_REWARD"
	NetWalletRefundKey        = "WALLET_REFUND"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("payoutd", false)

// InitConfig sets defaults and binds the PAYOUT_* environment.
func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("PAYOUT")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, "badger")
	vip.SetDefault(ProcessIntervalKey, 30)
	vip.SetDefault(StatsIntervalKey, 600)
	vip.SetDefault(FiatCurrencyKey, "CHF")
	vip.SetDefault(PricingURLKey, "https://api.kraken.com")

	return validate()
}

func validate() error {
	dbType := GetString(DBTypeKey)
	if dbType != "badger" && dbType != "inmemory" {
		return fmt.Errorf("unsupported database type %s", dbType)
	}
	if GetInt(ProcessIntervalKey) <= 0 {
		return fmt.Errorf("process interval must be positive")
	}
	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

// GetDuration reads an interval configured in seconds.
func GetDuration(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

// GetNetworks returns the list of networks the daemon should bring up.
func GetNetworks() []string {
	networks := strings.Split(GetString(NetworksKey), ",")
	cleaned := make([]string, 0, len(networks))
	for _, network := range networks {
		if network = strings.TrimSpace(network); len(network) > 0 {
			cleaned = append(cleaned, network)
		}
	}
	return cleaned
}

// Network-scoped getters, reading PAYOUT_<NETWORK>_<KEY>.

func GetNetworkString(network, key string) string {
	return vip.GetString(networkKey(network, key))
}

func GetNetworkInt(network, key string) int {
	return vip.GetInt(networkKey(network, key))
}

func GetNetworkBool(network, key string) bool {
	return vip.GetBool(networkKey(network, key))
}

func GetNetworkDecimal(network, key string) decimal.Decimal {
	raw := vip.GetString(networkKey(network, key))
	if len(raw) <= 0 {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return value
}

func networkKey(network, key string) string {
	return strings.ToUpper(network) + "_" + key
}

// GetDatadir returns the data directory, creating nothing.
func GetDatadir() string {
	return GetString(DatadirKey)
}
