// Package wizard implements the transfer step state machine: gated forward
// navigation, free back navigation, and the payment-in-flight sub-state that
// is left only by consuming a terminal payment outcome.
package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/gate"
	"remitflow/internal/transfer/models"
	dErrors "remitflow/pkg/domain-errors"
)

var (
	ErrPaymentInFlight = dErrors.New(dErrors.CodeInvalidState, "a payment is in flight")
	ErrCompleted       = dErrors.New(dErrors.CodeInvalidState, "transfer already completed")
)

// Orchestrator starts one payment attempt for a finalized record. It never
// returns a raw provider error: failures come back as an Immediate outcome.
type Orchestrator interface {
	Execute(ctx context.Context, req payment.ExecuteRequest) payment.PendingOperation
}

// Notifier dispatches the confirmation after a Success outcome. It must not
// block; an error means the notice could not even be queued.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, record models.TransferRecord, reference string) error
}

// Transition reports the result of a navigation request. Blocked is set when
// a gate refused the move; the position is then unchanged.
type Transition struct {
	From    models.Step  `json:"from"`
	To      models.Step  `json:"to"`
	Blocked *gate.Result `json:"blocked,omitempty"`
}

// Wizard owns one transfer session's state. It is not safe for concurrent
// use; callers serialize access per session.
type Wizard struct {
	state        State
	orchestrator Orchestrator
	notifier     Notifier
	now          func() time.Time
	newID        func() string
}

type Option func(*Wizard)

func WithOrchestrator(o Orchestrator) Option {
	return func(w *Wizard) { w.orchestrator = o }
}

func WithNotifier(n Notifier) Option {
	return func(w *Wizard) { w.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(w *Wizard) { w.newID = gen }
}

// New starts a wizard at the first step with an empty record.
func New(sessionID string, record models.TransferRecord, opts ...Option) *Wizard {
	w := build(opts)
	now := w.now()
	w.state = State{
		SessionID: sessionID,
		Position:  models.FirstStep,
		Highest:   models.FirstStep,
		Phase:     PhaseCollecting,
		Record:    record.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return w
}

// Restore rebuilds a wizard from a persisted snapshot.
func Restore(state State, opts ...Option) *Wizard {
	w := build(opts)
	w.state = state.Clone()
	return w
}

func build(opts []Option) *Wizard {
	w := &Wizard{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns a deep copy of the current snapshot.
func (w *Wizard) State() State {
	return w.state.Clone()
}

func (w *Wizard) Position() models.Step { return w.state.Position }

func (w *Wizard) touch() {
	w.state.UpdatedAt = w.now()
}

func (w *Wizard) ensureNavigable() error {
	switch w.state.Phase {
	case PhaseCompleted:
		return ErrCompleted
	case PhasePaymentInFlight:
		return ErrPaymentInFlight
	}
	return nil
}

// Advance moves forward one step if the current step's gate passes. A gate
// failure is a blocked transition, not an error.
func (w *Wizard) Advance() (Transition, error) {
	if err := w.ensureNavigable(); err != nil {
		return Transition{}, err
	}
	from := w.state.Position
	res := gate.Check(from, w.state.Record)
	if !res.Passed() {
		return Transition{From: from, To: from, Blocked: &res}, nil
	}
	w.moveTo(from + 1)
	return Transition{From: from, To: w.state.Position}, nil
}

// Retreat moves back one step without re-validating.
func (w *Wizard) Retreat() (Transition, error) {
	if err := w.ensureNavigable(); err != nil {
		return Transition{}, err
	}
	from := w.state.Position
	if from <= models.FirstStep {
		return Transition{}, dErrors.New(dErrors.CodeInvalidState, "already at the first step")
	}
	w.moveTo(from - 1)
	return Transition{From: from, To: w.state.Position}, nil
}

// Jump moves directly to target. Backward jumps are always allowed; forward
// jumps only reach visited steps and require every gate in between to pass.
func (w *Wizard) Jump(target models.Step) (Transition, error) {
	if err := w.ensureNavigable(); err != nil {
		return Transition{}, err
	}
	if !target.IsValid() || target > models.StepPayment {
		return Transition{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("cannot jump to %s", target))
	}
	from := w.state.Position
	if target > from {
		if target > w.state.Highest {
			return Transition{}, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("step %s not reached yet", target))
		}
		for s := from; s < target; s++ {
			if res := gate.Check(s, w.state.Record); !res.Passed() {
				return Transition{From: from, To: from, Blocked: &res}, nil
			}
		}
	}
	if target != from {
		w.moveTo(target)
	}
	return Transition{From: from, To: target}, nil
}

func (w *Wizard) moveTo(s models.Step) {
	w.state.Position = s
	if s > w.state.Highest {
		w.state.Highest = s
	}
	w.touch()
}

// Update merges a partial record. Validation belongs to the gates.
func (w *Wizard) Update(patch models.TransferPatch) error {
	if err := w.ensureNavigable(); err != nil {
		return err
	}
	w.state.Record = w.state.Record.Merge(patch)
	w.touch()
	return nil
}

// BeginPayment starts a payment attempt from the payment step. The wizard
// stays in flight until ConsumeOutcome applies the attempt's terminal outcome;
// an outcome resolved without external action is consumed immediately.
func (w *Wizard) BeginPayment(ctx context.Context) (payment.PendingOperation, error) {
	if err := w.ensureNavigable(); err != nil {
		return payment.PendingOperation{}, err
	}
	if w.state.Position != models.StepPayment {
		return payment.PendingOperation{}, dErrors.New(dErrors.CodeInvalidState, "payment starts at the payment step")
	}
	if res := gate.Review(w.state.Record); !res.Passed() {
		return payment.PendingOperation{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("review incomplete: %v", res.Fields()))
	}
	if w.orchestrator == nil {
		return payment.PendingOperation{}, dErrors.New(dErrors.CodeInternal, "no payment orchestrator configured")
	}

	op := w.orchestrator.Execute(ctx, payment.ExecuteRequest{
		SessionID: w.state.SessionID,
		Record:    w.state.Record.Snapshot(),
	})
	if op.IntentID == "" {
		return payment.PendingOperation{}, dErrors.New(dErrors.CodeInternal, "orchestrator returned no intent")
	}

	intent := op.Intent
	w.state.Intent = &intent
	w.state.PaymentError = nil
	w.state.Phase = PhasePaymentInFlight
	pending := clonePending(op)
	pending.Immediate = nil
	w.state.Pending = &pending
	w.touch()

	if op.Immediate != nil {
		if _, err := w.ConsumeOutcome(ctx, op.IntentID, *op.Immediate); err != nil {
			return payment.PendingOperation{}, err
		}
	}
	return op, nil
}

// ConsumeOutcome applies the terminal outcome of the in-flight intent. It
// reports false without changing anything for an intent already consumed or
// not in flight, which makes duplicate and stale signals no-ops.
func (w *Wizard) ConsumeOutcome(ctx context.Context, intentID string, outcome payment.Outcome) (bool, error) {
	if w.state.hasConsumed(intentID) {
		return false, nil
	}
	if w.state.Intent == nil || w.state.Intent.ID != intentID {
		return false, nil
	}
	if err := outcome.Validate(); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeValidation, "invalid payment outcome")
	}

	now := w.now()
	closed := *w.state.Intent
	if !closed.Status.IsTerminal() {
		if err := closed.Transition(outcome.Status(), now); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "close payment intent")
		}
	}
	w.state.ConsumedIntents = append(w.state.ConsumedIntents, intentID)
	w.state.Intent = nil
	w.state.Pending = nil
	w.state.ClosedIntent = &closed

	switch outcome.Kind {
	case payment.OutcomeSuccess:
		w.state.Phase = PhaseCompleted
		w.state.Position = models.StepComplete
		w.state.Highest = models.StepComplete
		w.state.Settlement = &Settlement{
			Reference:        outcome.Reference,
			CapturedAmount:   outcome.CapturedAmount,
			CapturedCurrency: outcome.CapturedCurrency,
			IntentID:         intentID,
			Strategy:         closed.Strategy,
			CompletedAt:      now,
		}
		w.notify(ctx, outcome.Reference)
	case payment.OutcomeCancelled:
		w.state.Phase = PhaseCollecting
		w.state.Position = models.StepPaymentMethod
	case payment.OutcomeError:
		w.state.Phase = PhaseCollecting
		w.state.Position = models.StepPayment
		w.state.PaymentError = &PaymentError{
			IntentID: intentID,
			Code:     outcome.Code,
			Reason:   outcome.Reason,
		}
	}
	w.state.UpdatedAt = now
	return true, nil
}

func (w *Wizard) notify(ctx context.Context, reference string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, w.state.SessionID, w.state.Record.Snapshot(), reference); err != nil {
		w.AddWarning(payment.CodeNotificationDispatchFailed, "The confirmation receipt could not be sent.")
	}
}

// AddWarning appends a dismissible warning and returns it.
func (w *Wizard) AddWarning(code payment.ErrorCode, message string) Warning {
	warning := Warning{
		ID:        w.newID(),
		Code:      code,
		Message:   message,
		CreatedAt: w.now(),
	}
	w.state.Warnings = append(w.state.Warnings, warning)
	w.touch()
	return warning
}

func (w *Wizard) DismissWarning(id string) error {
	for i, warning := range w.state.Warnings {
		if warning.ID == id {
			w.state.Warnings = append(w.state.Warnings[:i], w.state.Warnings[i+1:]...)
			w.touch()
			return nil
		}
	}
	return dErrors.New(dErrors.CodeNotFound, "warning not found")
}

// DismissPaymentError clears the retry banner. It is a no-op when none shows.
func (w *Wizard) DismissPaymentError() {
	if w.state.PaymentError == nil {
		return
	}
	w.state.PaymentError = nil
	w.touch()
}
