// Package notification sends the best-effort confirmation receipt after a
// successful transfer. Dispatch happens on a background worker; a failure is
// logged and surfaced as a dismissible warning on the session, never rolled
// back into the transfer.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/models"
	"remitflow/pkg/platform/circuit"
	"remitflow/pkg/requestcontext"
)

var ErrQueueFull = errors.New("notification queue is full")

// WarningSink records a non-blocking warning on a transfer session.
type WarningSink interface {
	AddWarning(ctx context.Context, sessionID string, code payment.ErrorCode, message string) error
}

// Dispatcher delivers one message to the notification endpoint.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, msg Message) error
}

type job struct {
	msg       Message
	requestID string
}

// Notifier queues confirmations and dispatches them from Run.
type Notifier struct {
	queue      chan job
	dispatcher Dispatcher
	breaker    *circuit.Breaker
	sink       WarningSink
	logger     *slog.Logger
	metrics    *Metrics
	timeout    time.Duration
	now        func() time.Time
}

type Option func(*Notifier)

func WithBuffer(n int) Option {
	return func(nt *Notifier) {
		if n > 0 {
			nt.queue = make(chan job, n)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(nt *Notifier) {
		if d > 0 {
			nt.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(nt *Notifier) { nt.breaker = b }
}

func WithMetrics(m *Metrics) Option {
	return func(nt *Notifier) { nt.metrics = m }
}

func New(dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		queue:      make(chan job, 256),
		dispatcher: dispatcher,
		breaker:    circuit.New("notification", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		logger:     logger,
		timeout:    10 * time.Second,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetWarningSink wires the sink once the transfer service exists.
func (n *Notifier) SetWarningSink(sink WarningSink) {
	n.sink = sink
}

// Notify queues a confirmation without blocking. It fails only when the
// message cannot be queued. Transfers without an address are skipped.
func (n *Notifier) Notify(ctx context.Context, sessionID string, rec models.TransferRecord, reference string) error {
	address := rec.NotificationAddress()
	if address == "" {
		n.metrics.IncDispatch("skipped")
		n.logger.InfoContext(ctx, "no receipt address, skipping confirmation",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
		)
		return nil
	}
	j := job{
		msg: Message{
			SessionID:           sessionID,
			RecipientAddress:    address,
			TransferSummary:     Summarize(rec),
			SettlementReference: reference,
			CreatedAt:           n.now(),
		},
		requestID: requestcontext.RequestID(ctx),
	}
	select {
	case n.queue <- j:
		n.metrics.SetQueueDepth(len(n.queue))
		return nil
	default:
		n.metrics.IncDispatch("dropped")
		n.logger.WarnContext(ctx, "notification queue full",
			"request_id", j.requestID,
			"session_id", sessionID,
		)
		return ErrQueueFull
	}
}

// Run dispatches queued messages until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-n.queue:
			n.metrics.SetQueueDepth(len(n.queue))
			n.dispatch(ctx, j)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, j job) {
	ctx = requestcontext.WithRequestID(ctx, j.requestID)
	if !n.breaker.Allow() {
		n.fail(ctx, j, errors.New("notification circuit open"))
		return
	}

	dctx, cancel := context.WithTimeout(ctx, n.timeout)
	err := n.dispatcher.Dispatch(dctx, j.msg)
	cancel()
	if err != nil {
		if change := n.breaker.RecordFailure(); change.Opened {
			n.logger.WarnContext(ctx, "notification circuit opened", "breaker", n.breaker.Name(), "dispatcher", n.dispatcher.Name())
		}
		n.fail(ctx, j, err)
		return
	}
	if change := n.breaker.RecordSuccess(); change.Closed {
		n.logger.InfoContext(ctx, "notification circuit closed", "dispatcher", n.dispatcher.Name())
	}
	n.metrics.IncDispatch("sent")
	n.logger.InfoContext(ctx, "confirmation dispatched",
		"request_id", j.requestID,
		"session_id", j.msg.SessionID,
		"dispatcher", n.dispatcher.Name(),
		"reference", j.msg.SettlementReference,
	)
}

func (n *Notifier) fail(ctx context.Context, j job, err error) {
	n.metrics.IncDispatch("failed")
	n.logger.ErrorContext(ctx, "confirmation dispatch failed",
		"request_id", j.requestID,
		"session_id", j.msg.SessionID,
		"dispatcher", n.dispatcher.Name(),
		"code", payment.CodeNotificationDispatchFailed,
		"error", err,
	)
	if n.sink == nil {
		return
	}
	if werr := n.sink.AddWarning(ctx, j.msg.SessionID, payment.CodeNotificationDispatchFailed,
		"The confirmation receipt could not be sent."); werr != nil {
		n.logger.ErrorContext(ctx, "failed to record notification warning",
			"request_id", j.requestID,
			"session_id", j.msg.SessionID,
			"error", werr,
		)
	}
}
