package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the Ollama server.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// transient reports whether the model server may answer differently on
// the next attempt (overloaded, restarting, still loading the model).
func (e *HTTPStatusError) transient() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func classifyOllamaError(err error) resilience.ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return resilience.CallerFault
	// per-attempt timeouts
	case errors.Is(err, context.DeadlineExceeded):
		return resilience.Transient
	// malformed embeddings will not fix themselves
	case domain.IsKind(err, domain.ErrProvider):
		return resilience.Permanent
	case errors.As(err, &statusErr):
		if statusErr.transient() {
			return resilience.Transient
		}
		// unknown model or bad payload
		return resilience.CallerFault
	case errors.As(err, &netErr):
		return resilience.Transient
	default:
		return resilience.Permanent
	}
}

// toDomainError maps what is left after retries onto the error kinds the
// use cases branch on.
func toDomainError(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrProvider) {
		return err
	}
	if classifyOllamaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return domain.WrapError(domain.ErrProvider, operation, err)
	}
	return err
}
