package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"remitflow/internal/payment"
	"remitflow/internal/payment/provider"
	dErrors "remitflow/pkg/domain-errors"
	"remitflow/pkg/requestcontext"
)

// Callbacks are the approve/cancel/error handlers of one hosted-card intent.
// They are rebuilt from the persisted intent, so any instance can serve a
// widget event.
type Callbacks struct {
	o         *Orchestrator
	intent    payment.Intent
	presenter Presenter
}

// Callbacks binds handlers to an in-flight hosted-card intent.
func (o *Orchestrator) Callbacks(intent payment.Intent) (*Callbacks, error) {
	if intent.Strategy != payment.StrategyHostedCard || !intent.Mode.IsWidget() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "intent does not accept widget events")
	}
	p, ok := o.presenters[intent.Mode]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("no presenter for mode %q", intent.Mode))
	}
	return &Callbacks{o: o, intent: intent, presenter: p}, nil
}

// ValidateApproval rejects an approval the presenter cannot capture. This is
// a request error, not an outcome.
func (c *Callbacks) ValidateApproval(a Approval) error {
	return c.presenter.Validate(a)
}

// Approve finalizes capture. Call ValidateApproval first.
func (c *Callbacks) Approve(ctx context.Context, a Approval) payment.Outcome {
	return c.o.capture(ctx, c.intent, a.CardToken)
}

// Cancel maps the widget being closed to a Cancelled outcome.
func (c *Callbacks) Cancel(ctx context.Context) payment.Outcome {
	c.o.logger.InfoContext(ctx, "payment cancelled by sender",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", c.intent.SessionID,
		"intent_id", c.intent.ID,
	)
	return payment.Cancelled()
}

// Error maps a widget-reported failure to an Error outcome.
func (c *Callbacks) Error(ctx context.Context, reason string) payment.Outcome {
	if reason == "" {
		reason = "payment widget reported an error"
	}
	c.o.logFailure(ctx, &c.intent, &failure{code: payment.CodeWidgetError, reason: reason})
	return payment.Failed(payment.CodeWidgetError, reason)
}

// CompleteReturn captures a redirect-wallet payment after the sender came
// back on the success route.
func (o *Orchestrator) CompleteReturn(ctx context.Context, intent payment.Intent) payment.Outcome {
	if intent.Strategy != payment.StrategyRedirectWallet {
		return payment.Failed(payment.CodeUnexpectedReturn, "intent was not a redirect payment")
	}
	return o.capture(ctx, intent, "")
}

func (o *Orchestrator) capture(ctx context.Context, intent payment.Intent, cardToken string) payment.Outcome {
	ctx, span := o.tracer.Start(ctx, "payment.capture", trace.WithAttributes(
		attribute.String("intent_id", intent.ID),
		attribute.String("order_id", intent.OrderID),
		attribute.String("strategy", string(intent.Strategy)),
	))
	defer span.End()

	start := time.Now()
	captured, err := o.merchant.Capture(ctx, provider.CaptureRequest{
		IntentID:  intent.ID,
		OrderID:   intent.OrderID,
		CardToken: cardToken,
	})
	o.metrics.ObserveProviderCall("capture", start)

	var f *failure
	switch {
	case err != nil:
		f = &failure{code: payment.CodeCaptureCompletionFailed, reason: "capture completion failed", err: err}
	case captured.Status != provider.CaptureCompleted:
		f = &failure{code: payment.CodeCaptureCompletionFailed, reason: fmt.Sprintf("capture ended with status %q", captured.Status)}
	case captured.Reference == "":
		f = &failure{code: payment.CodeCaptureCompletionFailed, reason: "capture returned no settlement reference"}
	}
	if f != nil {
		span.SetStatus(codes.Error, string(f.code))
		o.logFailure(ctx, &intent, f)
		return payment.Failed(f.code, f.reason)
	}

	amount, currency := captured.Amount, captured.Currency
	if amount.IsZero() {
		amount = intent.Amount
	}
	if currency == "" {
		currency = intent.Currency
	}
	o.logger.InfoContext(ctx, "payment captured",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", intent.SessionID,
		"intent_id", intent.ID,
		"reference", captured.Reference,
	)
	return payment.Succeeded(captured.Reference, amount, currency)
}
