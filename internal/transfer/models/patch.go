package models

import "github.com/shopspring/decimal"

// TransferPatch is a partial update. Nil fields are left untouched.
type TransferPatch struct {
	Category        *Category        `json:"category,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	SourceCurrency  *string          `json:"source_currency,omitempty"`
	Routing         *RoutingPatch    `json:"routing,omitempty"`
	Recipient       *RecipientPatch  `json:"recipient,omitempty"`
	PaymentMethod   *PaymentMethod   `json:"payment_method,omitempty"`
	ReceiptEmail    *string          `json:"receipt_email,omitempty"`
	ReviewConfirmed *bool            `json:"review_confirmed,omitempty"`
}

type RoutingPatch struct {
	DestinationCountry *string         `json:"destination_country,omitempty"`
	DeliveryMethod     *DeliveryMethod `json:"delivery_method,omitempty"`
}

type RecipientPatch struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Region    *string `json:"region,omitempty"`
	SubRegion *string `json:"sub_region,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// IsEmpty reports whether applying the patch would change nothing.
func (p TransferPatch) IsEmpty() bool {
	return p.Category == nil && p.Amount == nil && p.SourceCurrency == nil &&
		p.Routing == nil && p.Recipient == nil && p.PaymentMethod == nil &&
		p.ReceiptEmail == nil && p.ReviewConfirmed == nil
}

// Merge applies p over r field by field, last write wins. It performs no
// cross-field side effects: changing the category does not clear routing or
// the payment method; the gates decide what is still acceptable.
func (r TransferRecord) Merge(p TransferPatch) TransferRecord {
	out := r.Snapshot()
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.SourceCurrency != nil {
		out.SourceCurrency = *p.SourceCurrency
	}
	if p.Routing != nil {
		if out.Routing == nil {
			out.Routing = &Routing{}
		}
		if p.Routing.DestinationCountry != nil {
			out.Routing.DestinationCountry = *p.Routing.DestinationCountry
		}
		if p.Routing.DeliveryMethod != nil {
			out.Routing.DeliveryMethod = *p.Routing.DeliveryMethod
		}
	}
	if p.Recipient != nil {
		mergeRecipient(&out.Recipient, *p.Recipient)
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = *p.PaymentMethod
	}
	if p.ReceiptEmail != nil {
		out.ReceiptEmail = *p.ReceiptEmail
	}
	if p.ReviewConfirmed != nil {
		out.ReviewConfirmed = *p.ReviewConfirmed
	}
	return out
}

func mergeRecipient(dst *Recipient, p RecipientPatch) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Phone != nil {
		dst.Phone = *p.Phone
	}
	if p.Region != nil {
		dst.Region = *p.Region
	}
	if p.SubRegion != nil {
		dst.SubRegion = *p.SubRegion
	}
	if p.Email != nil {
		dst.Email = *p.Email
	}
}
