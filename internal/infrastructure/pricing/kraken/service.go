package krakenpricer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/httputil"
)

const requestTimeout = 10 * time.Second

// assetAliases maps common tickers to the symbols kraken quotes them under.
var assetAliases = map[string]string{
	"BTC": "XBT",
}

type krakenPricer struct {
	apiURL     string
	httpClient *httputil.Client
}

// NewService returns a ports.PriceSource quoting assets against fiat
// currencies on the kraken public ticker.
func NewService(apiURL string) ports.PriceSource {
	return &krakenPricer{
		apiURL:     apiURL,
		httpClient: httputil.NewClient(requestTimeout),
	}
}

func (k *krakenPricer) GetPrice(
	_ context.Context, asset, fiatCurrency string,
) (decimal.Decimal, error) {
	pair := k.tickerPair(asset, fiatCurrency)
	url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", k.apiURL, pair)

	status, resp, err := k.httpClient.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return decimal.Zero, err
	}
	if status != http.StatusOK {
		return decimal.Zero, fmt.Errorf("ticker request returned %d: %s", status, resp)
	}

	return parseTickerPrice(resp)
}

func (k *krakenPricer) tickerPair(asset, fiatCurrency string) string {
	if alias, ok := assetAliases[asset]; ok {
		asset = alias
	}
	return asset + fiatCurrency
}

type tickerResponse struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		Close []string `json:"c"`
	} `json:"result"`
}

func parseTickerPrice(body string) (decimal.Decimal, error) {
	ticker := tickerResponse{}
	if err := json.Unmarshal([]byte(body), &ticker); err != nil {
		return decimal.Zero, err
	}
	if len(ticker.Error) > 0 {
		return decimal.Zero, fmt.Errorf("ticker request failed: %v", ticker.Error)
	}

	for _, quote := range ticker.Result {
		if len(quote.Close) <= 0 {
			break
		}
		return decimal.NewFromString(quote.Close[0])
	}
	return decimal.Zero, fmt.Errorf("ticker response contains no quote")
}
