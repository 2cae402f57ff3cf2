package notification

import (
	"fmt"
	"time"

	"remitflow/internal/transfer/models"
)

// Message is the confirmation handed to a dispatcher.
type Message struct {
	SessionID           string    `json:"session_id"`
	RecipientAddress    string    `json:"recipient_address"`
	TransferSummary     string    `json:"transfer_summary"`
	SettlementReference string    `json:"settlement_reference"`
	CreatedAt           time.Time `json:"created_at"`
}

// Summarize renders the human-readable transfer line of a receipt.
func Summarize(rec models.TransferRecord) string {
	summary := fmt.Sprintf("%s %s to %s", rec.Amount.StringFixed(2), rec.SourceCurrency, rec.Recipient.Name)
	if rec.Category == models.CategoryCrossBorder && rec.Routing != nil {
		summary += fmt.Sprintf(" (%s, %s)", rec.Routing.DestinationCountry, rec.Routing.DeliveryMethod)
	}
	return summary
}
