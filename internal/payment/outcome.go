package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OutcomeKind tags a terminal payment outcome.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeError     OutcomeKind = "error"
)

// Outcome is the single authoritative result of an intent.
type Outcome struct {
	Kind             OutcomeKind     `json:"kind"`
	Reference        string          `json:"reference,omitempty"`
	CapturedAmount   decimal.Decimal `json:"captured_amount,omitzero"`
	CapturedCurrency string          `json:"captured_currency,omitempty"`
	Code             ErrorCode       `json:"code,omitempty"`
	Reason           string          `json:"reason,omitempty"`
}

func Succeeded(reference string, amount decimal.Decimal, currency string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Reference: reference, CapturedAmount: amount, CapturedCurrency: currency}
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled, Code: CodeUserCancelled}
}

func Failed(code ErrorCode, reason string) Outcome {
	return Outcome{Kind: OutcomeError, Code: code, Reason: reason}
}

// Validate rejects outcomes the wizard cannot apply.
func (o Outcome) Validate() error {
	switch o.Kind {
	case OutcomeSuccess:
		if o.Reference == "" {
			return fmt.Errorf("success outcome without settlement reference")
		}
	case OutcomeCancelled:
	case OutcomeError:
		if o.Code == "" {
			return fmt.Errorf("error outcome without code")
		}
	default:
		return fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	return nil
}

// Status is the terminal intent status the outcome implies.
func (o Outcome) Status() Status {
	switch o.Kind {
	case OutcomeSuccess:
		return StatusCaptured
	case OutcomeCancelled:
		return StatusCancelled
	default:
		return StatusFailed
	}
}
