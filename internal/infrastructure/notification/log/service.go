package lognotifier

import (
	log "github.com/sirupsen/logrus"

	"github.com/payout-network/payoutd/internal/core/ports"
)

type logNotifier struct{}

// NewLogNotifier returns a ports.Notifier writing alerts to the daemon log.
// It is the fallback when no webhook endpoint is configured.
func NewLogNotifier() ports.Notifier {
	return &logNotifier{}
}

func (n *logNotifier) SendAlert(subject string, errs []string, correlationId string) error {
	for _, e := range errs {
		log.WithField("correlation_id", correlationId).Errorf("%s: %s", subject, e)
	}
	return nil
}
