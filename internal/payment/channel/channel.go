// Package channel delivers at most one terminal outcome per payment intent
// to the wizard that owns it, whether the signal comes from an embedded
// widget or from a full redirect round trip.
package channel

import (
	"context"
	"log/slog"
	"sync"

	"remitflow/internal/payment"
	"remitflow/internal/payment/metrics"
	"remitflow/pkg/requestcontext"
)

// Mode is how an outcome reached the service.
type Mode string

const (
	ModeInContext   Mode = "in_context"
	ModeReturnRoute Mode = "return_route"
	ModeAbandoned   Mode = "abandoned"
)

// Consumer applies a terminal outcome to the session owning the intent. It
// reports false when the intent was already consumed or is not in flight.
type Consumer interface {
	Consume(ctx context.Context, intentID string, outcome payment.Outcome) (bool, error)
}

// Delivery reports what happened to one signal.
type Delivery struct {
	IntentID  string          `json:"intent_id"`
	Mode      Mode            `json:"mode"`
	Outcome   payment.Outcome `json:"outcome"`
	Duplicate bool            `json:"duplicate"`
}

// Channel gates outcome signals through a ledger, hands the first one to
// the consumer and wakes any callers awaiting the intent.
type Channel struct {
	ledger   Ledger
	consumer Consumer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	waiters map[string][]chan payment.Outcome
}

func New(ledger Ledger, consumer Consumer, logger *slog.Logger, m *metrics.Metrics) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		ledger:   ledger,
		consumer: consumer,
		logger:   logger,
		metrics:  m,
		waiters:  make(map[string][]chan payment.Outcome),
	}
}

// SetConsumer wires the consumer after construction; the consumer usually
// depends on services built after the channel.
func (c *Channel) SetConsumer(consumer Consumer) {
	c.consumer = consumer
}

// Resolve delivers the outcome computed by resolve for intentID. resolve runs
// at most once per intent, so a duplicate never triggers another capture.
// When the consumer fails, the resolved outcome is parked in the ledger and
// the next signal replays it instead of calling its own resolve. Later
// signals for an applied intent are reported as duplicates.
func (c *Channel) Resolve(ctx context.Context, intentID string, mode Mode, resolve func(context.Context) payment.Outcome) (Delivery, error) {
	claim, err := c.ledger.Claim(ctx, intentID)
	if err != nil {
		return Delivery{}, err
	}
	if !claim.Won {
		return c.duplicate(ctx, intentID, mode), nil
	}

	var outcome payment.Outcome
	if claim.Pending != nil {
		outcome = *claim.Pending
		c.logger.InfoContext(ctx, "replaying parked payment outcome",
			"request_id", requestcontext.RequestID(ctx),
			"intent_id", intentID,
			"mode", mode,
			"kind", outcome.Kind,
		)
	} else {
		outcome = resolve(ctx)
	}

	applied, err := c.consumer.Consume(ctx, intentID, outcome)
	if err != nil {
		if parkErr := c.ledger.Park(ctx, intentID, outcome); parkErr != nil {
			c.logger.ErrorContext(ctx, "failed to park payment outcome",
				"request_id", requestcontext.RequestID(ctx),
				"intent_id", intentID,
				"error", parkErr,
			)
		}
		return Delivery{}, err
	}
	if !applied {
		return c.duplicate(ctx, intentID, mode), nil
	}

	c.metrics.IncrementOutcome(string(mode), string(outcome.Kind))
	c.logger.InfoContext(ctx, "payment outcome delivered",
		"request_id", requestcontext.RequestID(ctx),
		"intent_id", intentID,
		"mode", mode,
		"kind", outcome.Kind,
		"code", outcome.Code,
	)
	c.publish(intentID, outcome)
	return Delivery{IntentID: intentID, Mode: mode, Outcome: outcome}, nil
}

func (c *Channel) duplicate(ctx context.Context, intentID string, mode Mode) Delivery {
	c.metrics.IncrementDuplicate(string(mode))
	c.logger.InfoContext(ctx, "ignoring duplicate payment signal",
		"request_id", requestcontext.RequestID(ctx),
		"intent_id", intentID,
		"mode", mode,
	)
	return Delivery{IntentID: intentID, Mode: mode, Duplicate: true}
}

// Subscribe registers interest in intentID's outcome. The returned channel
// receives at most one value and is closed afterwards. Call cancel when no
// longer waiting.
func (c *Channel) Subscribe(intentID string) (<-chan payment.Outcome, func()) {
	ch := make(chan payment.Outcome, 1)
	c.mu.Lock()
	c.waiters[intentID] = append(c.waiters[intentID], ch)
	c.mu.Unlock()
	c.metrics.WaiterStarted()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.metrics.WaiterDone()
			c.mu.Lock()
			defer c.mu.Unlock()
			list := c.waiters[intentID]
			for i, w := range list {
				if w == ch {
					c.waiters[intentID] = append(list[:i], list[i+1:]...)
					break
				}
			}
			if len(c.waiters[intentID]) == 0 {
				delete(c.waiters, intentID)
			}
		})
	}
	return ch, cancel
}

// Await blocks until intentID's outcome is delivered on this instance or ctx
// ends.
func (c *Channel) Await(ctx context.Context, intentID string) (payment.Outcome, error) {
	ch, cancel := c.Subscribe(intentID)
	defer cancel()
	select {
	case outcome, ok := <-ch:
		if !ok {
			return payment.Outcome{}, context.Canceled
		}
		return outcome, nil
	case <-ctx.Done():
		return payment.Outcome{}, ctx.Err()
	}
}

func (c *Channel) publish(intentID string, outcome payment.Outcome) {
	c.mu.Lock()
	list := c.waiters[intentID]
	delete(c.waiters, intentID)
	c.mu.Unlock()
	for _, ch := range list {
		ch <- outcome
		close(ch)
	}
}
