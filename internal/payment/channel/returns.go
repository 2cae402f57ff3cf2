package channel

import (
	"strings"

	"remitflow/internal/payment"
)

// Return-route variants.
const (
	VariantSuccess = "success"
	VariantCancel  = "cancel"
)

// ReturnEntry is what the application sees when a provider sends the sender
// back: the entry point variant and the provider reference, if any.
type ReturnEntry struct {
	Variant   string
	Reference string
}

// ResolveReturn maps a return-route hit to the outcome it stands for. A
// success carries only the provider reference; capture still has to run
// before it is authoritative.
func ResolveReturn(e ReturnEntry) payment.Outcome {
	ref := strings.TrimSpace(e.Reference)
	switch e.Variant {
	case VariantSuccess:
		if ref == "" {
			return payment.Cancelled()
		}
		return payment.Outcome{Kind: payment.OutcomeSuccess, Reference: ref}
	case VariantCancel:
		return payment.Cancelled()
	default:
		return payment.Failed(payment.CodeUnexpectedReturn, "unexpected return route "+e.Variant)
	}
}
