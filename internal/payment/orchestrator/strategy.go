package orchestrator

import (
	"context"
	"time"

	"remitflow/internal/payment"
	"remitflow/internal/payment/provider"
	"remitflow/internal/transfer/models"
)

// redirectWallet is the two-phase wallet protocol: fetch a credential, create
// a payment resource, then send the sender away to its URL. The outcome
// arrives later on the return route.
type redirectWallet struct {
	o *Orchestrator
}

func (s *redirectWallet) begin(ctx context.Context, intent *payment.Intent, _ models.TransferRecord) (payment.PendingOperation, error) {
	o := s.o

	start := time.Now()
	cred, err := o.wallet.IssueToken(ctx)
	o.metrics.ObserveProviderCall("issue_token", start)
	if err != nil {
		return payment.PendingOperation{}, &failure{
			code:   payment.CodeCredentialFetchFailed,
			reason: "could not obtain a wallet credential",
			err:    err,
		}
	}

	state, err := o.signer.Sign(intent.SessionID, intent.ID)
	if err != nil {
		return payment.PendingOperation{}, &failure{code: payment.CodeInternal, reason: "could not sign return state", err: err}
	}

	start = time.Now()
	created, err := o.wallet.CreatePayment(ctx, cred, provider.WalletPaymentRequest{
		IntentID:  intent.ID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		ReturnURL: o.returnURL("success", state),
		CancelURL: o.returnURL("cancel", state),
	})
	o.metrics.ObserveProviderCall("create_payment", start)
	if err != nil {
		return payment.PendingOperation{}, &failure{
			code:   payment.CodeOrderCreationFailed,
			reason: "wallet payment creation failed",
			err:    err,
		}
	}
	if created.RedirectURL == "" {
		return payment.PendingOperation{}, &failure{
			code:   payment.CodeMissingRedirectTarget,
			reason: "wallet payment has no redirect url",
		}
	}

	intent.Mode = payment.ModeRedirect
	intent.OrderID = created.ID
	return payment.PendingOperation{Redirect: &payment.Redirect{URL: created.RedirectURL}}, nil
}

// hostedCard creates a merchant order and renders it through the presenter
// chosen for the payment method. Capture happens on the widget's approval.
type hostedCard struct {
	o *Orchestrator
}

func (s *hostedCard) begin(ctx context.Context, intent *payment.Intent, rec models.TransferRecord) (payment.PendingOperation, error) {
	o := s.o

	start := time.Now()
	order, err := o.merchant.CreateOrder(ctx, provider.OrderRequest{
		IntentID: intent.ID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
		Method:   string(rec.PaymentMethod),
	})
	o.metrics.ObserveProviderCall("create_order", start)
	if err != nil {
		return payment.PendingOperation{}, &failure{
			code:   payment.CodeOrderCreationFailed,
			reason: "merchant order creation failed",
			err:    err,
		}
	}
	approve, ok := payment.FindLink(order.Links, "approve")
	if !ok {
		return payment.PendingOperation{}, &failure{
			code:   payment.CodeMissingRedirectTarget,
			reason: "merchant order has no approve link",
		}
	}

	presenter := o.presenterFor(rec.PaymentMethod)
	widget := presenter.Render(Binding{
		OrderID:      order.ID,
		ApproveLink:  approve,
		Endpoints:    o.endpoints(intent.ID),
		ClientConfig: o.clientConfig,
	})

	intent.Mode = presenter.Mode()
	intent.OrderID = order.ID
	return payment.PendingOperation{Widget: &widget}, nil
}

// presenterFor maps a payment method to its presentation: wallet-linked
// cards use the button widget, plain cards the configured mode.
func (o *Orchestrator) presenterFor(method models.PaymentMethod) Presenter {
	if method == models.MethodWalletCard {
		if p, ok := o.presenters[payment.ModeButtonWidget]; ok {
			return p
		}
	}
	return o.presenters[o.cardMode]
}
