package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/resilience"
)

const workerQueueGroup = "policy-ingest-workers"

// Queue carries IngestionEvents between the API and the worker pool. Workers
// join one queue group so each event is ingested by a single worker.
type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// HandlerTimeout bounds the ingestion of one event. Zero means no limit.
	HandlerTimeout time.Duration
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("insurance-upsell"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIngestion(ctx context.Context, event domain.IngestionEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return publishError(err)
}

// SubscribeIngestion blocks until ctx is done, then drains the subscription
// so in-flight events finish.
func (q *Queue) SubscribeIngestion(ctx context.Context, handler func(context.Context, domain.IngestionEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Error("ingestion_event_invalid", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := q.handlerContext(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("ingestion_event_failed", "document_id", event.DocumentID, "plan_id", event.PlanID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	if q.handlerTimeout > 0 {
		return context.WithTimeout(parent, q.handlerTimeout)
	}
	return context.WithCancel(parent)
}

func encodeEvent(event domain.IngestionEvent) ([]byte, error) {
	if strings.TrimSpace(event.DocumentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode ingestion event", fmt.Errorf("document id is required"))
	}
	if event.RequestedAt.IsZero() {
		event.RequestedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal ingestion event: %w", err)
	}
	return payload, nil
}

// decodeEvent also accepts a bare document id, the payload older publishers sent.
func decodeEvent(data []byte) (domain.IngestionEvent, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return domain.IngestionEvent{}, fmt.Errorf("empty ingestion event")
	}
	if !strings.HasPrefix(raw, "{") {
		return domain.IngestionEvent{DocumentID: raw}, nil
	}

	var event domain.IngestionEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return domain.IngestionEvent{}, fmt.Errorf("unmarshal ingestion event: %w", err)
	}
	if strings.TrimSpace(event.DocumentID) == "" {
		return domain.IngestionEvent{}, fmt.Errorf("ingestion event without document id")
	}
	return event, nil
}
