package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitflow/internal/payment/channel"
	"remitflow/internal/payment/orchestrator"
	"remitflow/internal/payment/provider"
	"remitflow/internal/payment/returnstate"
	"remitflow/internal/transfer/service"
	"remitflow/internal/transfer/store"
)

func newTransferRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := returnstate.NewSigner("handler-test-key", "https://api.test", time.Hour)
	sandbox := provider.NewSandbox("https://checkout.test")
	orch, err := orchestrator.New(sandbox, sandbox, signer, "https://api.test", logger)
	require.NoError(t, err)
	outcomes := channel.New(channel.NewMemoryLedger(time.Hour), nil, logger, nil)
	svc := service.New(store.NewInMemoryStore(time.Hour), orch, outcomes, signer,
		service.WithLogger(logger),
		service.WithDefaultCurrency("USD"),
	)
	outcomes.SetConsumer(svc)

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func domesticBody() map[string]any {
	return map[string]any{
		"category":        "domestic",
		"amount":          "50.00",
		"source_currency": "usd",
		"recipient": map[string]any{
			"name":       "Ana Reyes",
			"phone":      "5551234567",
			"region":     "CA",
			"sub_region": "Oakland",
		},
		"payment_method":   "bank_redirect",
		"review_confirmed": true,
	}
}

func TestStartWithoutBody(t *testing.T) {
	router := newTransferRouter(t)
	rec := do(t, router, http.MethodPost, "/transfers", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[SessionResponse](t, rec)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "category", resp.Position)
	assert.Equal(t, "USD", resp.Record.SourceCurrency)
	assert.Equal(t, "/transfers/"+resp.SessionID, rec.Header().Get("Location"))
}

func TestBlockedAdvanceReturnsUnsatisfiedFields(t *testing.T) {
	router := newTransferRouter(t)
	session := decode[SessionResponse](t, do(t, router, http.MethodPost, "/transfers", nil))

	rec := do(t, router, http.MethodPost, "/transfers/"+session.SessionID+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[NavigationResponse](t, rec)
	require.NotNil(t, resp.Transition.Blocked)
	assert.Equal(t, "category", resp.Transition.Blocked.Step)
	assert.Equal(t, "category", resp.Transition.Blocked.Unsatisfied[0].Field)
	assert.Equal(t, "category", resp.Session.Position)
}

func TestPatchNormalizesAndUnknownFieldsFail(t *testing.T) {
	router := newTransferRouter(t)
	session := decode[SessionResponse](t, do(t, router, http.MethodPost, "/transfers", nil))
	path := "/transfers/" + session.SessionID

	rec := do(t, router, http.MethodPatch, path, map[string]any{"source_currency": " eur "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EUR", decode[SessionResponse](t, rec).Record.SourceCurrency)

	rec = do(t, router, http.MethodPatch, path, map[string]any{"fx_rate": "1.2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJumpValidation(t *testing.T) {
	router := newTransferRouter(t)
	session := decode[SessionResponse](t, do(t, router, http.MethodPost, "/transfers", nil))
	path := "/transfers/" + session.SessionID + "/jump"

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, path, map[string]any{"step": "nowhere"}).Code)
	assert.Equal(t, http.StatusConflict, do(t, router, http.MethodPost, path, map[string]any{"step": "review"}).Code)
}

func TestUnknownSession(t *testing.T) {
	router := newTransferRouter(t)
	rec := do(t, router, http.MethodGet, "/transfers/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[map[string]string](t, rec)["error"])
}

func TestPaymentFlowToRedirect(t *testing.T) {
	router := newTransferRouter(t)
	session := decode[SessionResponse](t, do(t, router, http.MethodPost, "/transfers", domesticBody()))
	path := "/transfers/" + session.SessionID

	for i := 0; i < 5; i++ {
		rec := do(t, router, http.MethodPost, path+"/advance", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Nil(t, decode[NavigationResponse](t, rec).Transition.Blocked)
	}

	rec := do(t, router, http.MethodPost, path+"/payment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PaymentResponse](t, rec)
	require.NotNil(t, resp.Operation.Redirect)
	assert.Contains(t, resp.Operation.Redirect.URL, "/transfers/return/success?")
	assert.Equal(t, "payment_in_flight", string(resp.Session.Phase))
	assert.Equal(t, resp.Operation.IntentID, resp.Session.IntentID)

	// Navigation is frozen while the payment is in flight.
	assert.Equal(t, http.StatusConflict, do(t, router, http.MethodPost, path+"/retreat", nil).Code)

	rec = do(t, router, http.MethodGet, path+"/payment/outcome?wait=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[AwaitResponse](t, rec).TimedOut)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, path+"/payment/outcome?wait=soon", nil).Code)
}

func TestAbandonPayment(t *testing.T) {
	router := newTransferRouter(t)
	session := decode[SessionResponse](t, do(t, router, http.MethodPost, "/transfers", domesticBody()))
	path := "/transfers/" + session.SessionID

	assert.Equal(t, http.StatusConflict, do(t, router, http.MethodDelete, path+"/payment", nil).Code,
		"nothing to abandon before payment starts")

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, path+"/advance", nil).Code)
	}
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, path+"/payment", nil).Code)

	rec := do(t, router, http.MethodDelete, path+"/payment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AbandonResponse](t, rec)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, "collecting", string(resp.Session.Phase))
	assert.Equal(t, "payment_method", resp.Session.Position)
	assert.Empty(t, resp.Session.IntentID)

	// Navigation works again once the attempt is gone.
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPost, path+"/retreat", nil).Code)
}

func TestDismissUnknownWarning(t *testing.T) {
	router := newTransferRouter(t)
	session := decode[SessionResponse](t, do(t, router, http.MethodPost, "/transfers", nil))
	rec := do(t, router, http.MethodDelete, "/transfers/"+session.SessionID+"/warnings/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReceiptNotFound(t *testing.T) {
	router := newTransferRouter(t)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/receipts/REF-404", nil).Code)
}
