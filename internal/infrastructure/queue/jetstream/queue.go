// Package jetstream backs the durable job queue with NATS JetStream: message
// IDs deduplicate submissions, explicit acks give at-most-one active claim
// per job, and MaxDeliver plus the negative-ack delay implement the retry
// ceiling and backoff.
package jetstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
	"github.com/vgrishin/docextract/internal/infrastructure/resilience"
)

type Queue struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	opts Options
}

type Options struct {
	Stream  string
	Subject string
	Durable string

	MaxAttempts    int
	BackoffKind    resilience.BackoffKind
	BackoffBase    time.Duration
	BackoffCeiling time.Duration

	// AckWait is the per-attempt claim window; it should exceed the
	// pipeline's attempt timeout so a live worker is not double-claimed.
	AckWait time.Duration

	// MaxAge bounds how long unconsumed messages survive in the stream.
	MaxAge time.Duration

	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int

	Executor *resilience.Executor
}

func (o Options) normalize() Options {
	if o.Stream == "" {
		o.Stream = "DOCEXTRACT_JOBS"
	}
	if o.Subject == "" {
		o.Subject = "documents.extract"
	}
	if o.Durable == "" {
		o.Durable = "extract-workers"
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	if o.BackoffCeiling <= 0 {
		o.BackoffCeiling = 5 * time.Minute
	}
	if o.AckWait <= 0 {
		o.AckWait = 3 * time.Minute
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 7 * 24 * time.Hour
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	return o
}

func New(url string, options Options) (*Queue, error) {
	opts := options.normalize()

	conn, err := nats.Connect(
		url,
		nats.Name("docextract"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
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

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	q := &Queue{
		conn: conn,
		js:   js,
		opts: opts,
	}
	if err := q.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureStream() error {
	_, err := q.js.StreamInfo(q.opts.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:       q.opts.Stream,
		Subjects:   []string{q.opts.Subject},
		Retention:  nats.WorkQueuePolicy,
		MaxAge:     q.opts.MaxAge,
		Duplicates: 2 * time.Minute,
		Storage:    nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	return nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) Publish(ctx context.Context, payload domain.JobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	call := func(_ context.Context) error {
		if _, err := q.js.Publish(q.opts.Subject, data, nats.MsgId(payload.JobID)); err != nil {
			return fmt.Errorf("jetstream publish: %w", err)
		}
		return nil
	}

	if q.opts.Executor != nil {
		err = q.opts.Executor.Execute(ctx, "queue.publish", call, classifyQueueError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// Consume delivers jobs to the handler until ctx is cancelled. The durable
// queue group spreads deliveries across worker processes; a delivery is
// claimed until acked, negatively acked or its AckWait elapses.
func (q *Queue) Consume(
	ctx context.Context,
	handler func(ctx context.Context, payload domain.JobPayload, attempt int) ports.JobDisposition,
) error {
	sub, err := q.js.QueueSubscribe(q.opts.Subject, q.opts.Durable, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		q.dispatch(ctx, msg, handler)
	},
		nats.ManualAck(),
		nats.AckWait(q.opts.AckWait),
		nats.MaxDeliver(q.opts.MaxAttempts),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("jetstream subscribe: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) dispatch(
	ctx context.Context,
	msg *nats.Msg,
	handler func(ctx context.Context, payload domain.JobPayload, attempt int) ports.JobDisposition,
) {
	var payload domain.JobPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		slog.Error("drop_malformed_job_payload", "error", err)
		_ = msg.Term()
		return
	}

	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}
	payload.Attempt = attempt

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	switch handler(handlerCtx, payload, attempt) {
	case ports.JobRetry:
		delay := resilience.Delay(q.opts.BackoffKind, q.opts.BackoffBase, q.opts.BackoffCeiling, attempt)
		if err := msg.NakWithDelay(delay); err != nil {
			slog.Warn("nak_failed", "job_id", payload.JobID, "error", err)
		}
	case ports.JobTerm:
		if err := msg.Term(); err != nil {
			slog.Warn("term_failed", "job_id", payload.JobID, "error", err)
		}
	default:
		if err := msg.Ack(); err != nil {
			slog.Warn("ack_failed", "job_id", payload.JobID, "error", err)
		}
	}
}
