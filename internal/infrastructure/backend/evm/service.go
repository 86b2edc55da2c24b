package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/circuitbreaker"
	"github.com/payout-network/payoutd/pkg/httputil"
)

const (
	requestTimeout = 30 * time.Second

	coinGasLimit         = 21000
	defaultTokenGasLimit = 100000
	coinDecimals         = 18

	// transferSelector is the 4-byte selector of ERC20 transfer(address,uint256).
	transferSelector = "a9059cbb"
)

// Config collects the connection parameters of an account-model node with an
// unlocked payout account.
type Config struct {
	RPCURL string
	// WalletAddress is the unlocked account payouts are sent from.
	WalletAddress string
	// TokenDecimals overrides the decimals of specific token contracts,
	// defaults to 18.
	TokenDecimals map[string]int32
	// TokenGasLimit is the gas assumed for a token transfer.
	TokenGasLimit int64
}

type service struct {
	cfg        Config
	httpClient *httputil.Client
	cb         *gobreaker.CircuitBreaker
}

// NewService returns a ports.AccountBackend talking to an EVM-style node over
// JSON-RPC.
func NewService(cfg Config) (ports.AccountBackend, error) {
	if len(cfg.RPCURL) <= 0 {
		return nil, fmt.Errorf("missing node rpc url")
	}
	if len(cfg.WalletAddress) <= 0 {
		return nil, fmt.Errorf("missing payout wallet address")
	}
	if cfg.TokenGasLimit == 0 {
		cfg.TokenGasLimit = defaultTokenGasLimit
	}

	return &service{
		cfg:        cfg,
		httpClient: httputil.NewClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("evm-node"),
	}, nil
}

func (s *service) IsHealthy(ctx context.Context) (bool, error) {
	var syncing json.RawMessage
	if err := s.call("eth_syncing", []interface{}{}, &syncing); err != nil {
		return false, err
	}
	// eth_syncing returns false when the node is caught up, an object otherwise
	return string(syncing) == "false", nil
}

func (s *service) SendCoin(
	ctx context.Context, address string, amount decimal.Decimal, nonce *uint64,
) (string, error) {
	tx := map[string]interface{}{
		"from":  s.cfg.WalletAddress,
		"to":    address,
		"value": toHexAmount(amount, coinDecimals),
		"gas":   toHexUint(coinGasLimit),
	}
	if nonce != nil {
		tx["nonce"] = toHexUint(*nonce)
	}

	var txid string
	if err := s.call("eth_sendTransaction", []interface{}{tx}, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

func (s *service) SendToken(
	ctx context.Context, tokenContract, address string,
	amount decimal.Decimal, nonce *uint64,
) (string, error) {
	tx := map[string]interface{}{
		"from": s.cfg.WalletAddress,
		"to":   tokenContract,
		"data": transferCalldata(address, amount, s.tokenDecimals(tokenContract)),
		"gas":  toHexUint(uint64(s.cfg.TokenGasLimit)),
	}
	if nonce != nil {
		tx["nonce"] = toHexUint(*nonce)
	}

	var txid string
	if err := s.call("eth_sendTransaction", []interface{}{tx}, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

func (s *service) GetTransaction(
	ctx context.Context, txid string,
) (*ports.TxStatus, error) {
	var receipt *struct {
		BlockNumber       string `json:"blockNumber"`
		GasUsed           string `json:"gasUsed"`
		EffectiveGasPrice string `json:"effectiveGasPrice"`
		Status            string `json:"status"`
	}
	if err := s.call("eth_getTransactionReceipt", []interface{}{txid}, &receipt); err != nil {
		return nil, err
	}
	if receipt == nil || len(receipt.BlockNumber) <= 0 {
		return &ports.TxStatus{Confirmed: false}, nil
	}

	gasUsed, err := fromHexUint(receipt.GasUsed)
	if err != nil {
		return nil, err
	}
	gasPrice, err := fromHexUint(receipt.EffectiveGasPrice)
	if err != nil {
		return nil, err
	}

	feeWei := new(big.Int).Mul(
		new(big.Int).SetUint64(gasUsed), new(big.Int).SetUint64(gasPrice),
	)
	fee := decimal.NewFromBigInt(feeWei, -coinDecimals)

	return &ports.TxStatus{Confirmed: true, Confirmations: 1, Fee: fee}, nil
}

func (s *service) GetTxNonce(ctx context.Context, txid string) (uint64, error) {
	var tx *struct {
		Nonce string `json:"nonce"`
	}
	if err := s.call("eth_getTransactionByHash", []interface{}{txid}, &tx); err != nil {
		return 0, err
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction %s not found", txid)
	}
	return fromHexUint(tx.Nonce)
}

func (s *service) GetGasPrice(ctx context.Context) (decimal.Decimal, error) {
	var priceHex string
	if err := s.call("eth_gasPrice", []interface{}{}, &priceHex); err != nil {
		return decimal.Zero, err
	}

	priceWei, err := fromHexUint(priceHex)
	if err != nil {
		return decimal.Zero, err
	}
	// quote in coin units per gas unit
	return decimal.NewFromBigInt(new(big.Int).SetUint64(priceWei), -coinDecimals), nil
}

func (s *service) GetGasLimit(
	_ context.Context, tokenContract string,
) (decimal.Decimal, error) {
	if len(tokenContract) <= 0 {
		return decimal.NewFromInt(coinGasLimit), nil
	}
	return decimal.NewFromInt(s.cfg.TokenGasLimit), nil
}

func (s *service) GetWalletAddress(_ context.Context) (string, error) {
	return s.cfg.WalletAddress, nil
}

func (s *service) tokenDecimals(tokenContract string) int32 {
	if decimals, ok := s.cfg.TokenDecimals[tokenContract]; ok {
		return decimals
	}
	return coinDecimals
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Id      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (s *service) call(method string, params []interface{}, result interface{}) error {
	body, _ := json.Marshal(rpcRequest{
		JSONRPC: "2.0", Id: 1, Method: method, Params: params,
	})

	headers := map[string]string{"Content-Type": "application/json"}

	resp, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := s.httpClient.NewHTTPRequest(
			"POST", s.cfg.RPCURL, string(body), headers,
		)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("node returned %d: %s", status, resp)
		}
		return resp, nil
	})
	if err != nil {
		return err
	}

	rpcResp := rpcResponse{}
	if err := json.Unmarshal([]byte(resp.(string)), &rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s failed with code %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return json.Unmarshal(rpcResp.Result, result)
}

func toHexAmount(amount decimal.Decimal, decimals int32) string {
	units := amount.Shift(decimals).BigInt()
	return "0x" + units.Text(16)
}

func toHexUint(v uint64) string {
	return "0x" + new(big.Int).SetUint64(v).Text(16)
}

func fromHexUint(hexValue string) (uint64, error) {
	cleaned := strings.TrimPrefix(hexValue, "0x")
	v, ok := new(big.Int).SetString(cleaned, 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex quantity %s", hexValue)
	}
	return v.Uint64(), nil
}

func transferCalldata(address string, amount decimal.Decimal, decimals int32) string {
	addr := strings.TrimPrefix(strings.ToLower(address), "0x")
	units := amount.Shift(decimals).BigInt()

	return "0x" + transferSelector + leftPadWord(addr) + leftPadWord(units.Text(16))
}

// leftPadWord zero-pads a hex string to a full 32-byte abi word.
func leftPadWord(s string) string {
	if len(s) >= 64 {
		return s
	}
	return strings.Repeat("0", 64-len(s)) + s
}
