package ports

// Notifier escalates non-recoverable errors to the operations team.
// Delivery is fire-and-forget, a failed alert is only logged.
type Notifier interface {
	SendAlert(subject string, errs []string, correlationId string) error
}
