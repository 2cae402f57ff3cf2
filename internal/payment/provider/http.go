package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"remitflow/internal/payment"
)

// maxResponseBytes bounds provider response bodies.
const maxResponseBytes = 1 << 20

type jsonClient struct {
	providerID string
	http       *http.Client
}

// do sends a request and decodes a 2xx JSON body into out. Every failure is
// returned as a *payment.ProviderError carrying the response context.
func (c jsonClient) do(req *http.Request, operation string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		category := payment.ErrorProviderOutage
		if errors.Is(err, context.DeadlineExceeded) {
			category = payment.ErrorTimeout
		}
		return payment.NewProviderError(category, c.providerID, operation, 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return payment.NewProviderError(payment.ErrorProviderOutage, c.providerID, operation, resp.StatusCode, nil, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return payment.NewProviderError(payment.CategoryForStatus(resp.StatusCode), c.providerID, operation, resp.StatusCode, body, nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return payment.NewProviderError(payment.ErrorBadData, c.providerID, operation, resp.StatusCode, body, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func newJSONRequest(ctx context.Context, endpoint string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// WalletClient talks to the redirect wallet over HTTP.
type WalletClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       jsonClient
	now          func() time.Time
}

func NewWalletClient(baseURL, clientID, clientSecret string, timeout time.Duration) *WalletClient {
	return &WalletClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       jsonClient{providerID: WalletProviderID, http: &http.Client{Timeout: timeout}},
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// IssueToken runs the client-credentials grant against the token endpoint.
func (c *WalletClient) IssueToken(ctx context.Context) (Credential, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out tokenResponse
	if err := c.client.do(req, "issue_token", &out); err != nil {
		return Credential{}, err
	}
	if out.AccessToken == "" {
		return Credential{}, payment.NewProviderError(payment.ErrorContractMismatch, WalletProviderID, "issue_token", http.StatusOK, nil, errors.New("empty access token"))
	}
	return Credential{
		AccessToken: out.AccessToken,
		ExpiresAt:   c.now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}, nil
}

type walletPaymentBody struct {
	IntentID  string `json:"intent_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type walletPaymentResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

// CreatePayment creates the payment resource. A missing redirect URL is not
// an error here; the orchestrator classifies it.
func (c *WalletClient) CreatePayment(ctx context.Context, cred Credential, in WalletPaymentRequest) (WalletPayment, error) {
	req, err := newJSONRequest(ctx, c.baseURL+"/v1/payments", walletPaymentBody{
		IntentID:  in.IntentID,
		Amount:    in.Amount.StringFixed(2),
		Currency:  in.Currency,
		ReturnURL: in.ReturnURL,
		CancelURL: in.CancelURL,
	})
	if err != nil {
		return WalletPayment{}, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	var out walletPaymentResponse
	if err := c.client.do(req, "create_payment", &out); err != nil {
		return WalletPayment{}, err
	}
	return WalletPayment{ID: out.ID, RedirectURL: out.RedirectURL}, nil
}

// MerchantClient talks to the merchant backend over HTTP.
type MerchantClient struct {
	baseURL string
	apiKey  string
	client  jsonClient
}

func NewMerchantClient(baseURL, apiKey string, timeout time.Duration) *MerchantClient {
	return &MerchantClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  jsonClient{providerID: MerchantProviderID, http: &http.Client{Timeout: timeout}},
	}
}

type orderBody struct {
	IntentID string `json:"intent_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method,omitempty"`
}

type orderResponse struct {
	ID    string                 `json:"id"`
	Links []payment.ProviderLink `json:"links"`
}

func (c *MerchantClient) CreateOrder(ctx context.Context, in OrderRequest) (Order, error) {
	req, err := newJSONRequest(ctx, c.baseURL+"/v1/orders", orderBody{
		IntentID: in.IntentID,
		Amount:   in.Amount.StringFixed(2),
		Currency: in.Currency,
		Method:   in.Method,
	})
	if err != nil {
		return Order{}, err
	}
	c.authorize(req)

	var out orderResponse
	if err := c.client.do(req, "create_order", &out); err != nil {
		return Order{}, err
	}
	if out.ID == "" {
		return Order{}, payment.NewProviderError(payment.ErrorContractMismatch, MerchantProviderID, "create_order", http.StatusOK, nil, errors.New("order without id"))
	}
	return Order{ID: out.ID, Links: out.Links}, nil
}

type captureBody struct {
	IntentID  string `json:"intent_id"`
	OrderID   string `json:"order_id"`
	CardToken string `json:"card_token,omitempty"`
}

type captureResponse struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// Capture finalizes a payment. The caller decides what a non-completed
// status means.
func (c *MerchantClient) Capture(ctx context.Context, in CaptureRequest) (Capture, error) {
	req, err := newJSONRequest(ctx, c.baseURL+"/v1/captures", captureBody(in))
	if err != nil {
		return Capture{}, err
	}
	c.authorize(req)

	var out captureResponse
	if err := c.client.do(req, "capture", &out); err != nil {
		return Capture{}, err
	}
	return Capture(out), nil
}

func (c *MerchantClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
