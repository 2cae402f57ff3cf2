package payment

import "strings"

// Redirect asks the front end to leave for the provider's hosted page.
type Redirect struct {
	URL string `json:"url"`
}

// Endpoints are the intent-scoped callback routes a widget reports to.
type Endpoints struct {
	Approve string `json:"approve"`
	Cancel  string `json:"cancel"`
	Error   string `json:"error"`
}

// Widget describes an embedded presentation bound to one provider order.
type Widget struct {
	Mode         Mode              `json:"mode"`
	OrderID      string            `json:"order_id"`
	ClientConfig map[string]string `json:"client_config,omitempty"`
	Endpoints    Endpoints         `json:"endpoints"`
	// RequiresCardToken is set when approval needs a client-side
	// tokenization result.
	RequiresCardToken bool `json:"requires_card_token,omitempty"`
}

// PendingOperation is what starting a payment yields. Exactly one of
// Redirect, Widget or Immediate is set.
type PendingOperation struct {
	IntentID  string    `json:"intent_id"`
	Strategy  Strategy  `json:"strategy"`
	Redirect  *Redirect `json:"redirect,omitempty"`
	Widget    *Widget   `json:"widget,omitempty"`
	Immediate *Outcome  `json:"immediate,omitempty"`
	// Intent is the attempt the operation belongs to. The wizard keeps it
	// until the terminal outcome is consumed.
	Intent Intent `json:"-"`
}

// ProviderLink is a HATEOAS link on a provider order.
type ProviderLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// FindLink returns the first link with the given relation.
func FindLink(links []ProviderLink, rel string) (string, bool) {
	for _, l := range links {
		if strings.EqualFold(l.Rel, rel) && l.Href != "" {
			return l.Href, true
		}
	}
	return "", false
}
