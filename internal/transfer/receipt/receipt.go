// Package receipt stores the settlement receipt written when a transfer
// completes. Receipts are keyed by the provider's settlement reference and
// written at most once.
package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/models"
	"remitflow/internal/transfer/wizard"
)

type Receipt struct {
	Reference        string           `json:"reference"`
	SessionID        string           `json:"session_id"`
	IntentID         string           `json:"intent_id"`
	Category         models.Category  `json:"category"`
	Strategy         payment.Strategy `json:"strategy"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	CapturedAmount   decimal.Decimal  `json:"captured_amount"`
	CapturedCurrency string           `json:"captured_currency"`
	RecipientName    string           `json:"recipient_name"`
	CompletedAt      time.Time        `json:"completed_at"`
}

// FromState builds the receipt for a completed wizard. ok is false while the
// wizard has no settlement.
func FromState(st wizard.State) (Receipt, bool) {
	if st.Settlement == nil {
		return Receipt{}, false
	}
	return Receipt{
		Reference:        st.Settlement.Reference,
		SessionID:        st.SessionID,
		IntentID:         st.Settlement.IntentID,
		Category:         st.Record.Category,
		Strategy:         st.Settlement.Strategy,
		Amount:           st.Record.Amount,
		Currency:         st.Record.SourceCurrency,
		CapturedAmount:   st.Settlement.CapturedAmount,
		CapturedCurrency: st.Settlement.CapturedCurrency,
		RecipientName:    st.Record.Recipient.Name,
		CompletedAt:      st.Settlement.CompletedAt,
	}, true
}
