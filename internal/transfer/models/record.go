// Package models holds the transfer record collected by the wizard and the
// step positions it moves through.
package models

import (
	"github.com/shopspring/decimal"
)

// Category fixes which payment strategy family applies to a transfer.
type Category string

const (
	CategoryCrossBorder Category = "cross_border"
	CategoryDomestic    Category = "domestic"
)

func (c Category) IsValid() bool {
	return c == CategoryCrossBorder || c == CategoryDomestic
}

// DeliveryMethod is how a cross-border recipient receives funds.
type DeliveryMethod string

const (
	DeliveryBankDeposit DeliveryMethod = "bank_deposit"
	DeliveryCashPickup  DeliveryMethod = "cash_pickup"
	DeliveryMobileMoney DeliveryMethod = "mobile_money"
)

func (d DeliveryMethod) IsValid() bool {
	switch d {
	case DeliveryBankDeposit, DeliveryCashPickup, DeliveryMobileMoney:
		return true
	}
	return false
}

// PaymentMethod identifies the instrument the sender pays with.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodWalletCard   PaymentMethod = "wallet_card"
	MethodBankRedirect PaymentMethod = "bank_redirect"
	MethodMobileWallet PaymentMethod = "mobile_wallet"
)

// AllowedFor reports whether the method can fund a transfer of category c.
// Cross-border transfers are card funded, domestic ones wallet funded.
func (m PaymentMethod) AllowedFor(c Category) bool {
	switch c {
	case CategoryCrossBorder:
		return m == MethodCard || m == MethodWalletCard
	case CategoryDomestic:
		return m == MethodBankRedirect || m == MethodMobileWallet
	}
	return false
}

// Routing is the cross-border destination.
type Routing struct {
	DestinationCountry string         `json:"destination_country"`
	DeliveryMethod     DeliveryMethod `json:"delivery_method"`
}

// Recipient is who receives the transfer.
type Recipient struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Region    string `json:"region"`
	SubRegion string `json:"sub_region"`
	Email     string `json:"email,omitempty"`
}

// TransferRecord is the partially filled transfer accumulated across steps.
// The wizard owns it; collaborators only ever see Snapshot copies.
type TransferRecord struct {
	Category        Category        `json:"category,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	SourceCurrency  string          `json:"source_currency,omitempty"`
	Routing         *Routing        `json:"routing,omitempty"`
	Recipient       Recipient       `json:"recipient"`
	PaymentMethod   PaymentMethod   `json:"payment_method,omitempty"`
	ReceiptEmail    string          `json:"receipt_email,omitempty"`
	ReviewConfirmed bool            `json:"review_confirmed"`
}

// Snapshot returns a deep copy safe to hand to another component.
func (r TransferRecord) Snapshot() TransferRecord {
	out := r
	if r.Routing != nil {
		routing := *r.Routing
		out.Routing = &routing
	}
	return out
}

// NotificationAddress is where the confirmation receipt goes, if anywhere.
func (r TransferRecord) NotificationAddress() string {
	if r.ReceiptEmail != "" {
		return r.ReceiptEmail
	}
	return r.Recipient.Email
}
