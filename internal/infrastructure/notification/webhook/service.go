package webhooknotifier

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sony/gobreaker"
	"github.com/thanhpk/randstr"

	"github.com/payout-network/payoutd/internal/core/ports"
	"github.com/payout-network/payoutd/pkg/circuitbreaker"
	"github.com/payout-network/payoutd/pkg/httputil"
)

const requestTimeout = 15 * time.Second

type alertPayload struct {
	Subject       string   `json:"subject"`
	Errors        []string `json:"errors"`
	CorrelationId string   `json:"correlation_id"`
	Nonce         string   `json:"nonce"`
	Timestamp     int64    `json:"timestamp"`
}

// webhookNotifier posts error reports as JSON to an operations endpoint.
// Payloads are signed with a shared secret when one is configured, and the
// endpoint is protected by a circuit breaker so a dead ops hook cannot slow
// down payout cycles.
type webhookNotifier struct {
	endpoint   string
	secret     string
	httpClient *httputil.Client
	cb         *gobreaker.CircuitBreaker
}

// NewWebhookNotifier returns a ports.Notifier posting alerts to endpoint.
func NewWebhookNotifier(endpoint, secret string) (ports.Notifier, error) {
	if len(endpoint) <= 0 {
		return nil, fmt.Errorf("missing alert webhook endpoint")
	}

	return &webhookNotifier{
		endpoint:   endpoint,
		secret:     secret,
		httpClient: httputil.NewClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("alert-webhook"),
	}, nil
}

func (n *webhookNotifier) SendAlert(subject string, errs []string, correlationId string) error {
	payload := alertPayload{
		Subject:       subject,
		Errors:        errs,
		CorrelationId: correlationId,
		Nonce:         randstr.Hex(8),
		Timestamp:     time.Now().Unix(),
	}
	body, _ := json.Marshal(payload)

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if len(n.secret) > 0 {
		signature, err := n.sign(body)
		if err != nil {
			return fmt.Errorf("signing alert payload: %w", err)
		}
		headers["X-Payout-Signature"] = signature
	}

	_, err := n.cb.Execute(func() (interface{}, error) {
		status, resp, err := n.httpClient.NewHTTPRequest(
			"POST", n.endpoint, string(body), headers,
		)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK && status != http.StatusNoContent {
			return nil, fmt.Errorf("alert endpoint returned %d: %s", status, resp)
		}
		return nil, nil
	})
	return err
}

func (n *webhookNotifier) sign(body []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"payload": string(body),
		"iat":     time.Now().Unix(),
	})
	return token.SignedString([]byte(n.secret))
}
