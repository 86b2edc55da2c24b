package httptreasury

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/circuitbreaker"
	"github.com/payout-network/payoutd/pkg/httputil"
)

const requestTimeout = 30 * time.Second

type transferRequest struct {
	Asset       string          `json:"asset"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
}

type transferResponse struct {
	TxId string `json:"txid"`
}

type transferStatusResponse struct {
	Complete bool `json:"complete"`
}

// service implements ports.Treasury against the internal liquidity management
// API. A transfer request answered with 204 means the hot wallet already holds
// enough liquidity and no transfer is needed.
type service struct {
	baseURL    string
	apiKey     string
	httpClient *httputil.Client
	cb         *gobreaker.CircuitBreaker
}

// NewService returns a ports.Treasury moving liquidity through the service
// reachable at baseURL.
func NewService(baseURL, apiKey string) (ports.Treasury, error) {
	if len(baseURL) <= 0 {
		return nil, fmt.Errorf("missing treasury base url")
	}

	return &service{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httputil.NewClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("treasury"),
	}, nil
}

func (s *service) TransferLiquidity(
	_ context.Context, asset string, amount decimal.Decimal, destination string,
) (string, error) {
	body, _ := json.Marshal(transferRequest{
		Asset:       asset,
		Amount:      amount,
		Destination: destination,
	})

	resp, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := s.httpClient.NewHTTPRequest(
			"POST", s.baseURL+"/v1/transfers", string(body), s.headers(),
		)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNoContent {
			return nil, ports.ErrTransferNotRequired
		}
		if status != http.StatusOK && status != http.StatusCreated {
			return nil, fmt.Errorf("treasury returned %d: %s", status, resp)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}

	transfer := transferResponse{}
	if err := json.Unmarshal([]byte(resp.(string)), &transfer); err != nil {
		return "", err
	}
	if len(transfer.TxId) <= 0 {
		return "", fmt.Errorf("treasury response misses transfer txid")
	}
	return transfer.TxId, nil
}

func (s *service) CheckTransferCompletion(
	_ context.Context, transferTxId string,
) (bool, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/transfers/%s", s.baseURL, url.PathEscape(transferTxId),
	)

	resp, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := s.httpClient.NewHTTPRequest("GET", endpoint, "", s.headers())
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("treasury returned %d: %s", status, resp)
		}
		return resp, nil
	})
	if err != nil {
		return false, err
	}

	transferStatus := transferStatusResponse{}
	if err := json.Unmarshal([]byte(resp.(string)), &transferStatus); err != nil {
		return false, err
	}
	return transferStatus.Complete, nil
}

func (s *service) headers() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if len(s.apiKey) > 0 {
		headers["X-Api-Key"] = s.apiKey
	}
	return headers
}
