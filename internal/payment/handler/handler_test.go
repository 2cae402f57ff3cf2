package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"remitflow/internal/payment"
	"remitflow/internal/payment/channel"
	"remitflow/internal/payment/orchestrator"
	"remitflow/internal/payment/provider"
	"remitflow/internal/payment/returnstate"
	"remitflow/internal/transfer/models"
	"remitflow/internal/transfer/service"
	"remitflow/internal/transfer/store"
)

type PaymentHandlerSuite struct {
	suite.Suite
	ctx    context.Context
	svc    *service.Service
	router http.Handler
}

func TestPaymentHandlerSuite(t *testing.T) {
	suite.Run(t, new(PaymentHandlerSuite))
}

func (s *PaymentHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := returnstate.NewSigner("payment-handler-key", "https://api.test", time.Hour)
	sandbox := provider.NewSandbox("https://checkout.test")
	orch, err := orchestrator.New(sandbox, sandbox, signer, "https://api.test", logger)
	s.Require().NoError(err)
	outcomes := channel.New(channel.NewMemoryLedger(time.Hour), nil, logger, nil)
	s.svc = service.New(store.NewInMemoryStore(time.Hour), orch, outcomes, signer, service.WithLogger(logger))
	outcomes.SetConsumer(s.svc)

	r := chi.NewRouter()
	New(s.svc, "https://app.test/", logger).Register(r)
	s.router = r
}

func ptr[T any](v T) *T { return &v }

// beginPayment walks a new session to Payment and starts the attempt.
func (s *PaymentHandlerSuite) beginPayment(category models.Category, method models.PaymentMethod) (string, payment.PendingOperation) {
	patch := models.TransferPatch{
		Category:       ptr(category),
		Amount:         ptr(decimal.RequireFromString("50.00")),
		SourceCurrency: ptr("USD"),
		Recipient: &models.RecipientPatch{
			Name:      ptr("Ana Reyes"),
			Phone:     ptr("5551234567"),
			Region:    ptr("CA"),
			SubRegion: ptr("Oakland"),
		},
		PaymentMethod:   ptr(method),
		ReviewConfirmed: ptr(true),
	}
	if category == models.CategoryCrossBorder {
		patch.Routing = &models.RoutingPatch{
			DestinationCountry: ptr("PH"),
			DeliveryMethod:     ptr(models.DeliveryMobileMoney),
		}
	}
	st, err := s.svc.Start(s.ctx, patch)
	s.Require().NoError(err)
	for st.Position < models.StepPayment {
		res, err := s.svc.Advance(s.ctx, st.SessionID)
		s.Require().NoError(err)
		s.Require().Nil(res.Transition.Blocked)
		st = res.State
	}
	start, err := s.svc.BeginPayment(s.ctx, st.SessionID)
	s.Require().NoError(err)
	return st.SessionID, start.Pending
}

func (s *PaymentHandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PaymentHandlerSuite) get(target string) *httptest.ResponseRecorder {
	u, err := url.Parse(target)
	s.Require().NoError(err)
	return s.serve(httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
}

func (s *PaymentHandlerSuite) TestReturnSuccessRedirectsToApp() {
	sessionID, op := s.beginPayment(models.CategoryDomestic, models.MethodBankRedirect)
	s.Require().NotNil(op.Redirect)

	rec := s.get(op.Redirect.URL)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("https://app.test/transfers/"+sessionID+"?outcome=success", rec.Header().Get("Location"))

	replay := s.get(op.Redirect.URL)
	s.Equal(http.StatusSeeOther, replay.Code)
	s.Equal("https://app.test/transfers/"+sessionID+"?outcome=duplicate", replay.Header().Get("Location"))

	st, err := s.svc.Get(s.ctx, sessionID)
	s.Require().NoError(err)
	s.Equal(models.StepComplete, st.Position)
}

func (s *PaymentHandlerSuite) TestReturnCancel() {
	sessionID, op := s.beginPayment(models.CategoryDomestic, models.MethodMobileWallet)
	cancel := strings.Replace(op.Redirect.URL, "/return/success", "/return/cancel", 1)

	rec := s.get(cancel)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("https://app.test/transfers/"+sessionID+"?outcome=cancelled", rec.Header().Get("Location"))
}

func (s *PaymentHandlerSuite) TestReturnWithBadStateIs400() {
	rec := s.get("https://api.test/transfers/return/success?state=forged&reference=X")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *PaymentHandlerSuite) TestWidgetCancelViaQueryType() {
	sessionID, op := s.beginPayment(models.CategoryCrossBorder, models.MethodWalletCard)
	s.Require().NotNil(op.Widget)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+op.IntentID+"/events?type=cancel", nil)
	rec := s.serve(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp EventResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.False(resp.Duplicate)
	s.Require().NotNil(resp.Outcome)
	s.Equal(payment.OutcomeCancelled, resp.Outcome.Kind)

	st, err := s.svc.Get(s.ctx, sessionID)
	s.Require().NoError(err)
	s.Equal(models.StepPaymentMethod, st.Position)
}

func (s *PaymentHandlerSuite) TestWidgetApproveWithBody() {
	_, op := s.beginPayment(models.CategoryCrossBorder, models.MethodCard)

	body := strings.NewReader(`{"type":"approve","card_token":"tok_visa"}`)
	rec := s.serve(httptest.NewRequest(http.MethodPost, "/payments/"+op.IntentID+"/events", body))
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp EventResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(payment.OutcomeSuccess, resp.Outcome.Kind)
	s.NotEmpty(resp.Outcome.Reference)

	dup := s.serve(httptest.NewRequest(http.MethodPost, "/payments/"+op.IntentID+"/events?type=cancel", nil))
	s.Require().Equal(http.StatusOK, dup.Code)
	s.Require().NoError(json.NewDecoder(dup.Body).Decode(&resp))
	s.True(resp.Duplicate)
}

func (s *PaymentHandlerSuite) TestWidgetEventErrors() {
	_, op := s.beginPayment(models.CategoryCrossBorder, models.MethodCard)

	rec := s.serve(httptest.NewRequest(http.MethodPost, "/payments/"+op.IntentID+"/events?type=refund", nil))
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.serve(httptest.NewRequest(http.MethodPost, "/payments/"+op.IntentID+"/events?type=approve", nil))
	s.Equal(http.StatusBadRequest, rec.Code, "hosted fields need a card token")

	rec = s.serve(httptest.NewRequest(http.MethodPost, "/payments/unknown/events?type=cancel", nil))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *PaymentHandlerSuite) TestEventReasonIsTruncatedOnRuneBoundary() {
	req := &EventRequest{Type: "error", Reason: "a" + strings.Repeat("é", maxReasonBytes)}
	s.Require().NoError(req.Validate())
	s.Len(req.Reason, maxReasonBytes-1)
	s.True(utf8.ValidString(req.Reason))
}
