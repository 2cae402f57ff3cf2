package orchestrator

import (
	"strings"

	"remitflow/internal/payment"
	dErrors "remitflow/pkg/domain-errors"
)

// Binding is what a presenter binds its widget to: the provider order and
// the intent-scoped callback endpoints.
type Binding struct {
	OrderID      string
	ApproveLink  string
	Endpoints    payment.Endpoints
	ClientConfig map[string]string
}

// Approval is the payload a widget sends with its approve event.
type Approval struct {
	CardToken string
}

// Presenter is one hosted-card presentation mode. All modes are
// interchangeable: each renders a payable widget bound to the same order and
// emits its outcome through the same endpoints.
type Presenter interface {
	Mode() payment.Mode
	Render(b Binding) payment.Widget
	// Validate checks an approval before capture is attempted.
	Validate(a Approval) error
}

func baseConfig(b Binding) map[string]string {
	cfg := make(map[string]string, len(b.ClientConfig)+1)
	for k, v := range b.ClientConfig {
		cfg[k] = v
	}
	cfg["order_id"] = b.OrderID
	return cfg
}

// ButtonWidget is the provider's pre-built payment button.
type ButtonWidget struct{}

func (ButtonWidget) Mode() payment.Mode { return payment.ModeButtonWidget }

func (ButtonWidget) Render(b Binding) payment.Widget {
	return payment.Widget{
		Mode:         payment.ModeButtonWidget,
		OrderID:      b.OrderID,
		ClientConfig: baseConfig(b),
		Endpoints:    b.Endpoints,
	}
}

func (ButtonWidget) Validate(Approval) error { return nil }

// HostedFields renders provider-hosted card inputs. The browser tokenizes
// the card before approving, so approval without a token is rejected.
type HostedFields struct{}

func (HostedFields) Mode() payment.Mode { return payment.ModeHostedFields }

func (HostedFields) Render(b Binding) payment.Widget {
	cfg := baseConfig(b)
	cfg["fields"] = "number,expiry,cvv"
	return payment.Widget{
		Mode:              payment.ModeHostedFields,
		OrderID:           b.OrderID,
		ClientConfig:      cfg,
		Endpoints:         b.Endpoints,
		RequiresCardToken: true,
	}
}

func (HostedFields) Validate(a Approval) error {
	if strings.TrimSpace(a.CardToken) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "card_token is required for hosted fields")
	}
	return nil
}

// EmbeddedCheckout frames the provider's own mini-checkout at the order's
// approve link.
type EmbeddedCheckout struct{}

func (EmbeddedCheckout) Mode() payment.Mode { return payment.ModeEmbeddedCheckout }

func (EmbeddedCheckout) Render(b Binding) payment.Widget {
	cfg := baseConfig(b)
	cfg["frame_url"] = b.ApproveLink
	return payment.Widget{
		Mode:         payment.ModeEmbeddedCheckout,
		OrderID:      b.OrderID,
		ClientConfig: cfg,
		Endpoints:    b.Endpoints,
	}
}

func (EmbeddedCheckout) Validate(Approval) error { return nil }

// DefaultPresenters returns one presenter per hosted-card mode.
func DefaultPresenters() []Presenter {
	return []Presenter{ButtonWidget{}, HostedFields{}, EmbeddedCheckout{}}
}
