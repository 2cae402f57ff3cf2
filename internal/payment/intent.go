// Package payment defines the vocabulary shared by the orchestrator, the
// result channel and the transfer wizard: intents, outcomes and the pending
// operation handed back when a payment attempt starts.
package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"remitflow/internal/transfer/models"
)

// Strategy is the provider protocol family driving an attempt.
type Strategy string

const (
	StrategyRedirectWallet Strategy = "redirect_wallet"
	StrategyHostedCard     Strategy = "hosted_card"
)

// StrategyFor selects the strategy family for a transfer category.
func StrategyFor(c models.Category) (Strategy, bool) {
	switch c {
	case models.CategoryDomestic:
		return StrategyRedirectWallet, true
	case models.CategoryCrossBorder:
		return StrategyHostedCard, true
	}
	return "", false
}

// Mode is how the pending operation is presented to the sender.
type Mode string

const (
	ModeRedirect         Mode = "redirect"
	ModeButtonWidget     Mode = "button_widget"
	ModeHostedFields     Mode = "hosted_fields"
	ModeEmbeddedCheckout Mode = "embedded_checkout"
)

func (m Mode) IsWidget() bool {
	return m == ModeButtonWidget || m == ModeHostedFields || m == ModeEmbeddedCheckout
}

// Status is the lifecycle position of an intent.
type Status string

const (
	StatusCreated                Status = "created"
	StatusAwaitingExternalAction Status = "awaiting_external_action"
	StatusCaptured               Status = "captured"
	StatusCancelled              Status = "cancelled"
	StatusFailed                 Status = "failed"
)

// AllowedTransitions lists the statuses reachable from each status.
// Terminal statuses have no exits.
var AllowedTransitions = map[Status][]Status{
	StatusCreated:                {StatusAwaitingExternalAction, StatusFailed},
	StatusAwaitingExternalAction: {StatusCaptured, StatusCancelled, StatusFailed},
	StatusCaptured:               {},
	StatusCancelled:              {},
	StatusFailed:                 {},
}

func (s Status) IsTerminal() bool {
	next, ok := AllowedTransitions[s]
	return ok && len(next) == 0
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range AllowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Intent is one payment attempt. It lives only while the attempt is in
// flight; a retry always creates a new one.
type Intent struct {
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	Strategy  Strategy             `json:"strategy"`
	Mode      Mode                 `json:"mode"`
	Method    models.PaymentMethod `json:"method"`
	OrderID   string               `json:"order_id,omitempty"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  string               `json:"currency"`
	Status    Status               `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewIntent starts an attempt in the created status.
func NewIntent(sessionID string, strategy Strategy, rec models.TransferRecord, now time.Time) *Intent {
	return &Intent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Strategy:  strategy,
		Method:    rec.PaymentMethod,
		Amount:    rec.Amount,
		Currency:  rec.SourceCurrency,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the intent to status to, enforcing AllowedTransitions.
func (i *Intent) Transition(to Status, now time.Time) error {
	if !i.Status.CanTransitionTo(to) {
		return fmt.Errorf("intent %s: illegal transition %s -> %s", i.ID, i.Status, to)
	}
	i.Status = to
	i.UpdatedAt = now
	return nil
}

// ExecuteRequest is what the wizard hands the orchestrator: the session the
// attempt belongs to and an immutable copy of the record.
type ExecuteRequest struct {
	SessionID string
	Record    models.TransferRecord
}
