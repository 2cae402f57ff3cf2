package wizard

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/models"
)

// Phase is the wizard's sub-state orthogonal to its step position.
type Phase string

const (
	PhaseCollecting      Phase = "collecting"
	PhasePaymentInFlight Phase = "payment_in_flight"
	PhaseCompleted       Phase = "completed"
)

// Settlement is stored when a Success outcome is consumed.
type Settlement struct {
	Reference        string           `json:"reference"`
	CapturedAmount   decimal.Decimal  `json:"captured_amount"`
	CapturedCurrency string           `json:"captured_currency"`
	IntentID         string           `json:"intent_id"`
	Strategy         payment.Strategy `json:"strategy"`
	CompletedAt      time.Time        `json:"completed_at"`
}

// PaymentError backs the retry banner shown after an Error outcome.
type PaymentError struct {
	IntentID string            `json:"intent_id"`
	Code     payment.ErrorCode `json:"code"`
	Reason   string            `json:"reason"`
}

// Warning is a dismissible, non-blocking notice.
type Warning struct {
	ID        string            `json:"id"`
	Code      payment.ErrorCode `json:"code"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
}

// State is the complete, serializable wizard snapshot. Persisting it after
// every mutation is what lets a wizard be rebuilt after a redirect round trip.
type State struct {
	SessionID       string                    `json:"session_id"`
	Position        models.Step               `json:"position"`
	Highest         models.Step               `json:"highest"`
	Phase           Phase                     `json:"phase"`
	Record          models.TransferRecord     `json:"record"`
	Intent          *payment.Intent           `json:"intent,omitempty"`
	ClosedIntent    *payment.Intent           `json:"closed_intent,omitempty"`
	Pending         *payment.PendingOperation `json:"pending,omitempty"`
	Settlement      *Settlement               `json:"settlement,omitempty"`
	PaymentError    *PaymentError             `json:"payment_error,omitempty"`
	Warnings        []Warning                 `json:"warnings,omitempty"`
	ConsumedIntents []string                  `json:"consumed_intents,omitempty"`
	Version         int64                     `json:"version"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Record = s.Record.Snapshot()
	if s.Intent != nil {
		intent := *s.Intent
		out.Intent = &intent
	}
	if s.ClosedIntent != nil {
		closed := *s.ClosedIntent
		out.ClosedIntent = &closed
	}
	if s.Pending != nil {
		pending := clonePending(*s.Pending)
		out.Pending = &pending
	}
	if s.Settlement != nil {
		settlement := *s.Settlement
		out.Settlement = &settlement
	}
	if s.PaymentError != nil {
		pe := *s.PaymentError
		out.PaymentError = &pe
	}
	out.Warnings = slices.Clone(s.Warnings)
	out.ConsumedIntents = slices.Clone(s.ConsumedIntents)
	return out
}

func clonePending(p payment.PendingOperation) payment.PendingOperation {
	if p.Redirect != nil {
		r := *p.Redirect
		p.Redirect = &r
	}
	if p.Widget != nil {
		w := *p.Widget
		if w.ClientConfig != nil {
			cfg := make(map[string]string, len(w.ClientConfig))
			for k, v := range w.ClientConfig {
				cfg[k] = v
			}
			w.ClientConfig = cfg
		}
		p.Widget = &w
	}
	if p.Immediate != nil {
		o := *p.Immediate
		p.Immediate = &o
	}
	return p
}

// InFlight reports whether a payment attempt awaits its terminal outcome.
func (s State) InFlight() bool {
	return s.Phase == PhasePaymentInFlight
}

func (s State) hasConsumed(intentID string) bool {
	return slices.Contains(s.ConsumedIntents, intentID)
}
