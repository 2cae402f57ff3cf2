package service

import (
	"context"
	"errors"
	"time"

	"remitflow/internal/payment"
	"remitflow/internal/payment/channel"
	"remitflow/internal/payment/orchestrator"
	"remitflow/internal/transfer/receipt"
	"remitflow/internal/transfer/wizard"
	dErrors "remitflow/pkg/domain-errors"
	"remitflow/pkg/platform/sentinel"
	"remitflow/pkg/requestcontext"
)

// Widget event types posted by the in-context payment widget.
const (
	EventApprove = "approve"
	EventCancel  = "cancel"
	EventError   = "error"
)

type WidgetEvent struct {
	Type      string
	CardToken string
	Reason    string
}

// PaymentStart is the result of BeginPayment.
type PaymentStart struct {
	Pending payment.PendingOperation
	State   wizard.State
}

// BeginPayment starts a payment attempt. It is not retried on a version
// conflict because the attempt has already created provider resources.
func (s *Service) BeginPayment(ctx context.Context, sessionID string) (PaymentStart, error) {
	var op payment.PendingOperation
	st, err := s.mutate(ctx, sessionID, "begin_payment", false, func(w *wizard.Wizard) error {
		var err error
		op, err = w.BeginPayment(ctx)
		return err
	})
	if err != nil {
		return PaymentStart{}, err
	}
	if op.Immediate != nil {
		s.logger.InfoContext(ctx, "payment attempt resolved immediately",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
			"intent_id", op.IntentID,
			"kind", op.Immediate.Kind,
			"code", op.Immediate.Code,
		)
	}
	return PaymentStart{Pending: op, State: st}, nil
}

// Consume applies a delivered outcome to the session owning intentID. It
// reports false for unknown, stale or already consumed intents.
func (s *Service) Consume(ctx context.Context, intentID string, outcome payment.Outcome) (bool, error) {
	sessionID, err := s.store.FindSessionByIntent(ctx, intentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.translate(err, "find session for intent")
	}

	var applied bool
	st, err := s.mutate(ctx, sessionID, "consume_outcome", true, func(w *wizard.Wizard) error {
		var err error
		applied, err = w.ConsumeOutcome(ctx, intentID, outcome)
		return err
	})
	if err != nil {
		return false, err
	}
	if applied && st.ClosedIntent != nil {
		s.logger.InfoContext(ctx, "payment intent closed",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
			"intent_id", intentID,
			"strategy", st.ClosedIntent.Strategy,
			"status", st.ClosedIntent.Status,
		)
	}
	if applied && outcome.Kind == payment.OutcomeSuccess {
		s.metrics.IncrementCompleted(string(st.Record.Category))
		s.metrics.IncrementTransition(st.Position.String())
		s.saveReceipt(ctx, st)
	}
	return applied, nil
}

func (s *Service) saveReceipt(ctx context.Context, st wizard.State) {
	r, ok := receipt.FromState(st)
	if !ok {
		return
	}
	if _, err := s.receipts.Save(ctx, r); err != nil {
		s.logger.ErrorContext(ctx, "failed to store settlement receipt",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", st.SessionID,
			"reference", r.Reference,
			"error", err,
		)
	}
}

// inFlightIntent loads the session owning intentID and returns its in-flight
// intent. ok is false when intentID is no longer the session's live attempt.
func (s *Service) inFlightIntent(ctx context.Context, sessionID, intentID string) (payment.Intent, bool, error) {
	st, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return payment.Intent{}, false, s.translate(err, "load transfer session")
	}
	if !st.InFlight() || st.Intent == nil || st.Intent.ID != intentID {
		return payment.Intent{}, false, nil
	}
	return *st.Intent, true, nil
}

// stale resolves a signal for an intent that is no longer in flight. The
// wizard rejects it, so the delivery is reported as a duplicate.
func stale(context.Context) payment.Outcome { return payment.Cancelled() }

// HandleWidgetEvent delivers an in-context widget event for intentID.
func (s *Service) HandleWidgetEvent(ctx context.Context, intentID string, ev WidgetEvent) (channel.Delivery, error) {
	sessionID, err := s.store.FindSessionByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return channel.Delivery{}, dErrors.New(dErrors.CodeNotFound, "payment intent not found")
		}
		return channel.Delivery{}, s.translate(err, "find session for intent")
	}
	ctx = requestcontext.WithSessionID(ctx, sessionID)

	intent, live, err := s.inFlightIntent(ctx, sessionID, intentID)
	if err != nil {
		return channel.Delivery{}, err
	}
	if !live {
		return s.outcomes.Resolve(ctx, intentID, channel.ModeInContext, stale)
	}

	callbacks, err := s.orchestrator.Callbacks(intent)
	if err != nil {
		return channel.Delivery{}, err
	}
	var resolve func(context.Context) payment.Outcome
	switch ev.Type {
	case EventApprove:
		approval := orchestrator.Approval{CardToken: ev.CardToken}
		if err := callbacks.ValidateApproval(approval); err != nil {
			return channel.Delivery{}, err
		}
		resolve = func(ctx context.Context) payment.Outcome { return callbacks.Approve(ctx, approval) }
	case EventCancel:
		resolve = callbacks.Cancel
	case EventError:
		resolve = func(ctx context.Context) payment.Outcome { return callbacks.Error(ctx, ev.Reason) }
	default:
		return channel.Delivery{}, dErrors.New(dErrors.CodeBadRequest, "unknown widget event type")
	}
	return s.outcomes.Resolve(ctx, intentID, channel.ModeInContext, resolve)
}

// ReturnResult tells the return route where to send the sender.
type ReturnResult struct {
	SessionID string
	Delivery  channel.Delivery
}

// HandleReturn processes the sender coming back from the redirect wallet.
// A success entry is only provisional: capture runs before it is delivered,
// and only when the returned reference is the intent's own payment. Invalid
// state is a request error and never becomes an outcome.
func (s *Service) HandleReturn(ctx context.Context, entry channel.ReturnEntry, state string) (ReturnResult, error) {
	claims, err := s.verifier.Verify(state)
	if err != nil {
		return ReturnResult{}, err
	}
	ctx = requestcontext.WithSessionID(ctx, claims.SessionID)

	intent, live, err := s.inFlightIntent(ctx, claims.SessionID, claims.IntentID)
	if err != nil {
		return ReturnResult{}, err
	}

	provisional := channel.ResolveReturn(entry)
	resolve := func(ctx context.Context) payment.Outcome {
		if !live {
			return stale(ctx)
		}
		if provisional.Kind != payment.OutcomeSuccess {
			return provisional
		}
		if provisional.Reference != intent.OrderID {
			s.logger.WarnContext(ctx, "return reference does not match the payment",
				"request_id", requestcontext.RequestID(ctx),
				"session_id", claims.SessionID,
				"intent_id", intent.ID,
				"order_id", intent.OrderID,
				"reference", provisional.Reference,
			)
			return payment.Failed(payment.CodeUnexpectedReturn, "return reference does not match the payment")
		}
		return s.orchestrator.CompleteReturn(ctx, intent)
	}

	d, err := s.outcomes.Resolve(ctx, claims.IntentID, channel.ModeReturnRoute, resolve)
	if err != nil {
		return ReturnResult{}, err
	}
	return ReturnResult{SessionID: claims.SessionID, Delivery: d}, nil
}

// AbandonResult is the session after the sender gave up on an attempt.
// Duplicate is set when the attempt had already resolved another way.
type AbandonResult struct {
	Delivery channel.Delivery
	State    wizard.State
}

// AbandonPayment gives up on the in-flight attempt of sessionID, for a
// wallet window that never sent the sender back. The intent resolves as
// Cancelled through the outcome channel, so a late return or widget event
// for it becomes a duplicate.
func (s *Service) AbandonPayment(ctx context.Context, sessionID string) (AbandonResult, error) {
	st, err := s.Get(ctx, sessionID)
	if err != nil {
		return AbandonResult{}, err
	}
	if !st.InFlight() || st.Intent == nil {
		return AbandonResult{}, dErrors.New(dErrors.CodeInvalidState, "no payment in flight")
	}
	intentID := st.Intent.ID

	d, err := s.outcomes.Resolve(ctx, intentID, channel.ModeAbandoned, func(ctx context.Context) payment.Outcome {
		s.logger.InfoContext(ctx, "payment abandoned by sender",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
			"intent_id", intentID,
		)
		return payment.Cancelled()
	})
	if err != nil {
		return AbandonResult{}, err
	}
	if st, err = s.Get(ctx, sessionID); err != nil {
		return AbandonResult{}, err
	}
	return AbandonResult{Delivery: d, State: st}, nil
}

// AwaitResult is the session snapshot after waiting. TimedOut is set when no
// outcome arrived within the wait.
type AwaitResult struct {
	State    wizard.State
	TimedOut bool
}

// AwaitOutcome long-polls until the in-flight attempt of sessionID resolves
// or wait elapses. Sessions without an attempt in flight return immediately.
func (s *Service) AwaitOutcome(ctx context.Context, sessionID string, wait time.Duration) (AwaitResult, error) {
	st, err := s.Get(ctx, sessionID)
	if err != nil {
		return AwaitResult{}, err
	}
	if !st.InFlight() || st.Intent == nil || wait <= 0 {
		return AwaitResult{State: st, TimedOut: st.InFlight()}, nil
	}

	updates, cancel := s.outcomes.Subscribe(st.Intent.ID)
	defer cancel()

	// The outcome may have landed between the first read and Subscribe.
	if st, err = s.Get(ctx, sessionID); err != nil {
		return AwaitResult{}, err
	}
	if !st.InFlight() {
		return AwaitResult{State: st}, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	timedOut := false
	select {
	case <-updates:
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
		return AwaitResult{}, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "stopped waiting for payment outcome")
	}

	if st, err = s.Get(ctx, sessionID); err != nil {
		return AwaitResult{}, err
	}
	return AwaitResult{State: st, TimedOut: timedOut && st.InFlight()}, nil
}

// Receipt returns the settlement receipt for reference.
func (s *Service) Receipt(ctx context.Context, reference string) (receipt.Receipt, error) {
	r, err := s.receipts.FindByReference(ctx, reference)
	if errors.Is(err, sentinel.ErrNotFound) {
		return receipt.Receipt{}, dErrors.New(dErrors.CodeNotFound, "receipt not found")
	}
	if err != nil {
		return receipt.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return r, nil
}
