// Package provider holds the gateways to the external payment providers: the
// redirect wallet (token + payment resource) and the merchant backend (orders
// and capture completion).
package provider

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Wallet,Merchant

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"remitflow/internal/payment"
)

const (
	WalletProviderID   = "wallet"
	MerchantProviderID = "merchant"
)

// CaptureCompleted is the only capture status treated as settled.
const CaptureCompleted = "COMPLETED"

// Credential is a short-lived bearer token from the wallet.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

type WalletPaymentRequest struct {
	IntentID  string
	Amount    decimal.Decimal
	Currency  string
	ReturnURL string
	CancelURL string
}

type WalletPayment struct {
	ID          string
	RedirectURL string
}

type OrderRequest struct {
	IntentID string
	Amount   decimal.Decimal
	Currency string
	Method   string
}

type Order struct {
	ID    string
	Links []payment.ProviderLink
}

type CaptureRequest struct {
	IntentID  string
	OrderID   string
	CardToken string
}

type Capture struct {
	Status    string
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// Wallet is the redirect-wallet provider.
type Wallet interface {
	IssueToken(ctx context.Context) (Credential, error)
	CreatePayment(ctx context.Context, cred Credential, req WalletPaymentRequest) (WalletPayment, error)
}

// Merchant is the merchant backend used for hosted-card orders and for
// capture completion of both strategies.
type Merchant interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	Capture(ctx context.Context, req CaptureRequest) (Capture, error)
}
