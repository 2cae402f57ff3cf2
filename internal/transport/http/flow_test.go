package httptransport

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitflow/internal/payment/channel"
	paymenthandler "remitflow/internal/payment/handler"
	"remitflow/internal/payment/orchestrator"
	"remitflow/internal/payment/provider"
	"remitflow/internal/payment/returnstate"
	transferhandler "remitflow/internal/transfer/handler"
	"remitflow/internal/transfer/receipt"
	"remitflow/internal/transfer/service"
	"remitflow/internal/transfer/store"
	"remitflow/pkg/testutil"
)

func newSandboxRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := quietLogger()
	signer := returnstate.NewSigner("flow-test-key", "https://api.test", time.Hour)
	sandbox := provider.NewSandbox("https://api.test/sandbox")
	orch, err := orchestrator.New(sandbox, sandbox, signer, "https://api.test", logger)
	require.NoError(t, err)
	outcomes := channel.New(channel.NewMemoryLedger(time.Hour), nil, logger, nil)
	svc := service.New(store.NewInMemoryStore(time.Hour), orch, outcomes, signer,
		service.WithLogger(logger),
		service.WithDefaultCurrency("USD"),
	)
	outcomes.SetConsumer(svc)

	return NewRouter(Config{}, logger, nil,
		transferhandler.New(svc, logger),
		paymenthandler.New(svc, "https://app.test", logger),
	)
}

func domesticPatch() map[string]any {
	return map[string]any{
		"category":        "domestic",
		"amount":          "75.50",
		"source_currency": "usd",
		"payment_method":  "bank_redirect",
		"recipient": map[string]any{
			"name":       "Luis Ortega",
			"phone":      "5559876543",
			"region":     "TX",
			"sub_region": "Austin",
			"email":      "luis@example.com",
		},
		"review_confirmed": true,
	}
}

func TestDomesticRedirectFlow(t *testing.T) {
	router := newSandboxRouter(t)

	testutil.Given(t, "a domestic transfer walked to the payment step", func(t *testing.T) {
		rr := testutil.Do(router, testutil.NewJSONRequest(t, http.MethodPost, "/transfers", domesticPatch()))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		session := testutil.DecodeJSON[transferhandler.SessionResponse](t, rr)
		require.Equal(t, "USD", session.Record.SourceCurrency)
		base := "/transfers/" + session.SessionID

		for session.Position != "payment" {
			rr = testutil.Do(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/advance", nil))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			nav := testutil.DecodeJSON[transferhandler.NavigationResponse](t, rr)
			require.Nil(t, nav.Transition.Blocked)
			session = nav.Session
		}

		var redirect string
		testutil.When(t, "the payment attempt starts", func(t *testing.T) {
			rr := testutil.Do(router, testutil.NewJSONRequest(t, http.MethodPost, base+"/payment", nil))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			resp := testutil.DecodeJSON[transferhandler.PaymentResponse](t, rr)
			require.NotNil(t, resp.Operation.Redirect)
			assert.Equal(t, resp.Operation.IntentID, resp.Session.IntentID)
			redirect = resp.Operation.Redirect.URL
		})

		testutil.When(t, "the sender comes back through the return route", func(t *testing.T) {
			u, err := url.Parse(redirect)
			require.NoError(t, err)
			rr := testutil.Do(router, testutil.NewJSONRequest(t, http.MethodGet, u.RequestURI(), nil))
			require.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, "https://app.test"+base+"?outcome=success", rr.Header().Get("Location"))
		})

		testutil.Then(t, "the session is complete with a settlement", func(t *testing.T) {
			rr := testutil.Do(router, testutil.NewJSONRequest(t, http.MethodGet, base, nil))
			require.Equal(t, http.StatusOK, rr.Code)
			done := testutil.DecodeJSON[transferhandler.SessionResponse](t, rr)
			assert.Equal(t, "complete", done.Position)
			require.NotNil(t, done.Settlement)
			assert.Empty(t, done.IntentID)

			testutil.And(t, "the receipt is retrievable by reference", func(t *testing.T) {
				rr := testutil.Do(router, testutil.NewJSONRequest(t, http.MethodGet, "/receipts/"+done.Settlement.Reference, nil))
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				rec := testutil.DecodeJSON[receipt.Receipt](t, rr)
				assert.Equal(t, done.SessionID, rec.SessionID)
				assert.Equal(t, "Luis Ortega", rec.RecipientName)
			})
		})
	})
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	router := newSandboxRouter(t)

	rr := testutil.Do(router, testutil.NewJSONRequest(t, http.MethodGet, "/transfers/does-not-exist", nil))
	testutil.AssertError(t, rr, http.StatusNotFound, "not_found")
}
