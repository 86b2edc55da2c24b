package bitcoind

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/circuitbreaker"
	"github.com/payout-network/payoutd/pkg/httputil"
)

const (
	requestTimeout = 30 * time.Second
	// requestsPerSecond caps how hard completion polling may hit the node.
	requestsPerSecond = 10
)

// Config collects the connection parameters of a bitcoind-compatible node.
// Every payout context draws from its own wallet on the same node.
type Config struct {
	RPCURL  string
	RPCUser string
	RPCPass string
	// Wallets maps each payout context to the node wallet it pays from.
	Wallets map[domain.PayoutContext]string
	// MinConfirmations a payout transaction needs to count as complete.
	MinConfirmations uint64
}

type service struct {
	cfg        Config
	httpClient *httputil.Client
	cb         *gobreaker.CircuitBreaker
	limiter    ratelimit.Limiter
}

// NewService returns a ports.UtxoBackend talking to a bitcoind-compatible
// node over JSON-RPC.
func NewService(cfg Config) (ports.UtxoBackend, error) {
	if len(cfg.RPCURL) <= 0 {
		return nil, fmt.Errorf("missing node rpc url")
	}
	if cfg.MinConfirmations == 0 {
		cfg.MinConfirmations = 1
	}

	return &service{
		cfg:        cfg,
		httpClient: httputil.NewClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("bitcoind"),
		limiter:    ratelimit.New(requestsPerSecond),
	}, nil
}

func (s *service) IsHealthy(
	ctx context.Context, payoutContext domain.PayoutContext,
) (bool, error) {
	var info struct {
		Blocks               uint64 `json:"blocks"`
		Headers              uint64 `json:"headers"`
		InitialBlockDownload bool   `json:"initialblockdownload"`
	}
	if err := s.call(payoutContext, "getblockchaininfo", nil, &info); err != nil {
		return false, err
	}
	return !info.InitialBlockDownload && info.Blocks >= info.Headers, nil
}

func (s *service) SendToMany(
	ctx context.Context, payoutContext domain.PayoutContext,
	outputs []ports.TxOutput, feeRate decimal.Decimal,
) (string, error) {
	amounts := make(map[string]json.Number, len(outputs))
	for _, out := range outputs {
		amounts[out.Address] = json.Number(out.Amount.String())
	}

	params := []interface{}{"", amounts, 1, "payout"}
	if feeRate.IsPositive() {
		// dummy, amounts, minconf, comment, subtractfeefrom, replaceable,
		// conf_target, estimate_mode, fee_rate (sat/vB)
		satPerVByte := feeRate.Mul(decimal.New(1, 8)).Round(3)
		params = append(
			params, []string{}, true, nil, nil, json.Number(satPerVByte.String()),
		)
	}

	var txid string
	if err := s.call(payoutContext, "sendmany", params, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

func (s *service) GetTransaction(
	ctx context.Context, payoutContext domain.PayoutContext, txid string,
) (*ports.TxStatus, error) {
	var tx struct {
		Confirmations uint64          `json:"confirmations"`
		Fee           decimal.Decimal `json:"fee"`
	}
	if err := s.call(payoutContext, "gettransaction", []interface{}{txid}, &tx); err != nil {
		return nil, err
	}

	return &ports.TxStatus{
		Confirmed:     tx.Confirmations >= s.cfg.MinConfirmations,
		Confirmations: tx.Confirmations,
		// bitcoind reports wallet fees as negative amounts in coin units
		Fee: tx.Fee.Abs(),
	}, nil
}

func (s *service) EstimateFeeRate(ctx context.Context) (decimal.Decimal, error) {
	var estimate struct {
		FeeRate decimal.Decimal `json:"feerate"`
		Errors  []string        `json:"errors"`
	}
	if err := s.call("", "estimatesmartfee", []interface{}{2}, &estimate); err != nil {
		return decimal.Zero, err
	}
	if len(estimate.Errors) > 0 {
		return decimal.Zero, fmt.Errorf("fee estimation failed: %v", estimate.Errors)
	}

	// feerate comes in coin/kvB, strategies work in coin/vB
	return estimate.FeeRate.Div(decimal.NewFromInt(1000)), nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Id      string        `json:"id"`
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

func (s *service) call(
	payoutContext domain.PayoutContext, method string, params []interface{},
	result interface{},
) error {
	if params == nil {
		params = []interface{}{}
	}
	body, _ := json.Marshal(rpcRequest{
		JSONRPC: "1.0", Id: "payoutd", Method: method, Params: params,
	})

	url := s.cfg.RPCURL
	if wallet, ok := s.cfg.Wallets[payoutContext]; ok && len(wallet) > 0 {
		url = fmt.Sprintf("%s/wallet/%s", s.cfg.RPCURL, wallet)
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Basic " + basicAuth(s.cfg.RPCUser, s.cfg.RPCPass),
	}

	resp, err := s.cb.Execute(func() (interface{}, error) {
		s.limiter.Take()

		status, resp, err := s.httpClient.NewHTTPRequest("POST", url, string(body), headers)
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

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
