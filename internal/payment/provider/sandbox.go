package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"remitflow/internal/payment"
)

// Sandbox is an in-process stand-in for both providers, used in development
// when no provider URLs are configured. The wallet "approves" instantly by
// redirecting straight to the return URL with a reference attached.
type Sandbox struct {
	checkoutBase string

	mu     sync.Mutex
	orders map[string]OrderRequest
}

func NewSandbox(checkoutBase string) *Sandbox {
	return &Sandbox{
		checkoutBase: strings.TrimRight(checkoutBase, "/"),
		orders:       make(map[string]OrderRequest),
	}
}

func (s *Sandbox) IssueToken(context.Context) (Credential, error) {
	return Credential{AccessToken: "sbx-" + uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *Sandbox) CreatePayment(_ context.Context, _ Credential, req WalletPaymentRequest) (WalletPayment, error) {
	id := "SBXPAY-" + shortID()
	s.remember(id, OrderRequest{IntentID: req.IntentID, Amount: req.Amount, Currency: req.Currency})

	redirect, err := url.Parse(req.ReturnURL)
	if err != nil {
		return WalletPayment{}, payment.NewProviderError(payment.ErrorBadData, WalletProviderID, "create_payment", 0, nil, err)
	}
	q := redirect.Query()
	q.Set("reference", id)
	redirect.RawQuery = q.Encode()
	return WalletPayment{ID: id, RedirectURL: redirect.String()}, nil
}

func (s *Sandbox) CreateOrder(_ context.Context, req OrderRequest) (Order, error) {
	id := "SBXORD-" + shortID()
	s.remember(id, req)
	return Order{
		ID: id,
		Links: []payment.ProviderLink{
			{Rel: "self", Href: s.checkoutBase + "/orders/" + id},
			{Rel: "approve", Href: s.checkoutBase + "/checkout/" + id},
		},
	}, nil
}

func (s *Sandbox) Capture(_ context.Context, req CaptureRequest) (Capture, error) {
	s.mu.Lock()
	order, ok := s.orders[req.OrderID]
	s.mu.Unlock()
	if !ok {
		return Capture{}, payment.NewProviderError(payment.ErrorRejected, MerchantProviderID, "capture", 404, nil, fmt.Errorf("unknown order %s", req.OrderID))
	}
	return Capture{
		Status:    CaptureCompleted,
		Reference: "SBXREF-" + shortID(),
		Amount:    order.Amount,
		Currency:  order.Currency,
	}, nil
}

func (s *Sandbox) remember(id string, req OrderRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id] = req
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

var (
	_ Wallet   = (*Sandbox)(nil)
	_ Merchant = (*Sandbox)(nil)
	_ Wallet   = (*WalletClient)(nil)
	_ Merchant = (*MerchantClient)(nil)
)

