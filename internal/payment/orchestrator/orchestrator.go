// Package orchestrator turns a finalized transfer record into exactly one
// externally hosted payment attempt. Domestic transfers go through the
// redirect wallet; cross-border transfers through the hosted card flow.
// Provider failures never escape: they become Error outcomes.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"remitflow/internal/payment"
	"remitflow/internal/payment/metrics"
	"remitflow/internal/payment/provider"
	"remitflow/internal/transfer/models"
	"remitflow/pkg/requestcontext"
)

// StateSigner signs the state carried through a provider redirect.
type StateSigner interface {
	Sign(sessionID, intentID string) (string, error)
}

// strategy drives one provider protocol family up to the point where the
// sender has to act.
type strategy interface {
	begin(ctx context.Context, intent *payment.Intent, rec models.TransferRecord) (payment.PendingOperation, error)
}

// Orchestrator executes payment attempts.
type Orchestrator struct {
	wallet        provider.Wallet
	merchant      provider.Merchant
	signer        StateSigner
	presenters    map[payment.Mode]Presenter
	cardMode      payment.Mode
	publicBaseURL string
	clientConfig  map[string]string
	strategies    map[payment.Strategy]strategy
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
}

type Option func(*Orchestrator)

// WithHostedCardMode sets the presentation used for plain card payments.
func WithHostedCardMode(mode payment.Mode) Option {
	return func(o *Orchestrator) { o.cardMode = mode }
}

func WithPresenters(presenters ...Presenter) Option {
	return func(o *Orchestrator) {
		o.presenters = make(map[payment.Mode]Presenter, len(presenters))
		for _, p := range presenters {
			o.presenters[p.Mode()] = p
		}
	}
}

func WithClientConfig(cfg map[string]string) Option {
	return func(o *Orchestrator) { o.clientConfig = cfg }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(wallet provider.Wallet, merchant provider.Merchant, signer StateSigner, publicBaseURL string, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if wallet == nil || merchant == nil {
		return nil, fmt.Errorf("wallet and merchant providers are required")
	}
	if signer == nil {
		return nil, fmt.Errorf("return state signer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		wallet:        wallet,
		merchant:      merchant,
		signer:        signer,
		cardMode:      payment.ModeHostedFields,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
		tracer:        otel.Tracer("remitflow/payment/orchestrator"),
		now:           func() time.Time { return time.Now().UTC() },
	}
	WithPresenters(DefaultPresenters()...)(o)
	for _, opt := range opts {
		opt(o)
	}
	if _, ok := o.presenters[o.cardMode]; !ok {
		return nil, fmt.Errorf("no presenter for hosted card mode %q", o.cardMode)
	}
	o.strategies = map[payment.Strategy]strategy{
		payment.StrategyRedirectWallet: &redirectWallet{o: o},
		payment.StrategyHostedCard:     &hostedCard{o: o},
	}
	return o, nil
}

// Execute starts one payment attempt. The returned operation always carries
// a fresh intent; failures are reported as an Immediate Error outcome.
func (o *Orchestrator) Execute(ctx context.Context, req payment.ExecuteRequest) payment.PendingOperation {
	rec := req.Record.Snapshot()
	kind, ok := payment.StrategyFor(rec.Category)
	intent := payment.NewIntent(req.SessionID, kind, rec, o.now())

	ctx, span := o.tracer.Start(ctx, "payment.execute", trace.WithAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.String("intent_id", intent.ID),
		attribute.String("strategy", string(kind)),
	))
	defer span.End()

	if !ok {
		return o.fail(ctx, span, intent, &failure{
			code:   payment.CodeInternal,
			reason: fmt.Sprintf("no payment strategy for category %q", rec.Category),
		})
	}

	op, err := o.strategies[kind].begin(ctx, intent, rec)
	if err != nil {
		return o.fail(ctx, span, intent, asFailure(err))
	}
	if err := intent.Transition(payment.StatusAwaitingExternalAction, o.now()); err != nil {
		return o.fail(ctx, span, intent, &failure{code: payment.CodeInternal, reason: "intent state", err: err})
	}

	op.IntentID = intent.ID
	op.Strategy = kind
	op.Intent = *intent
	o.metrics.IncrementAttempt(string(kind), string(intent.Mode))
	o.logger.InfoContext(ctx, "payment attempt started",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", intent.SessionID,
		"intent_id", intent.ID,
		"strategy", kind,
		"mode", intent.Mode,
	)
	return op
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, intent *payment.Intent, f *failure) payment.PendingOperation {
	_ = intent.Transition(payment.StatusFailed, o.now())
	span.SetStatus(codes.Error, string(f.code))
	o.logFailure(ctx, intent, f)
	outcome := payment.Failed(f.code, f.reason)
	return payment.PendingOperation{
		IntentID:  intent.ID,
		Strategy:  intent.Strategy,
		Immediate: &outcome,
		Intent:    *intent,
	}
}

// logFailure records provider failures with their response context.
func (o *Orchestrator) logFailure(ctx context.Context, intent *payment.Intent, f *failure) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"session_id", intent.SessionID,
		"intent_id", intent.ID,
		"strategy", intent.Strategy,
		"code", f.code,
	}
	providerID := "none"
	if pe, ok := payment.AsProviderError(f.err); ok {
		providerID = pe.ProviderID
		attrs = append(attrs,
			"provider_id", pe.ProviderID,
			"operation", pe.Operation,
			"status", pe.StatusCode,
			"category", pe.Category,
			"retryable", pe.Retryable,
			"body", pe.Body,
		)
	}
	if f.err != nil {
		attrs = append(attrs, "error", f.err)
	}
	o.metrics.IncrementProviderError(providerID, string(f.code))
	o.logger.ErrorContext(ctx, "payment attempt failed: "+f.reason, attrs...)
}

// returnURL builds a return-route URL for a variant carrying signed state.
func (o *Orchestrator) returnURL(variant, state string) string {
	return o.publicBaseURL + "/transfers/return/" + variant + "?" + url.Values{"state": {state}}.Encode()
}

func (o *Orchestrator) endpoints(intentID string) payment.Endpoints {
	events := o.publicBaseURL + "/payments/" + url.PathEscape(intentID) + "/events"
	return payment.Endpoints{
		Approve: events + "?type=approve",
		Cancel:  events + "?type=cancel",
		Error:   events + "?type=error",
	}
}

// failure is a normalized step failure inside a strategy.
type failure struct {
	code   payment.ErrorCode
	reason string
	err    error
}

func (f *failure) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%s: %s: %v", f.code, f.reason, f.err)
	}
	return fmt.Sprintf("%s: %s", f.code, f.reason)
}

func (f *failure) Unwrap() error { return f.err }

func asFailure(err error) *failure {
	if f, ok := err.(*failure); ok {
		return f
	}
	return &failure{code: payment.CodeInternal, reason: "unexpected strategy error", err: err}
}
