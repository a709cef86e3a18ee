package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/resilience"
)

// Connection-level failures the client recovers from by reconnecting.
var reconnectableErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrSlowConsumer,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		domain.IsKind(err, domain.ErrInvalidInput) {
		return resilience.CallerFault
	}
	for _, target := range reconnectableErrors {
		if errors.Is(err, target) {
			return resilience.Transient
		}
	}
	return resilience.Permanent
}

// publishError marks broker outages as temporary so upload callers can
// answer 503 instead of 500.
func publishError(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
