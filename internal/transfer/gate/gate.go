// Package gate holds the per-step predicates that decide whether the wizard
// may move past a step. Gates are pure functions of the transfer record.
package gate

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"remitflow/internal/transfer/models"
)

// FieldError names one unsatisfied field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Result is the verdict of a gate. A result with no unsatisfied fields passes.
type Result struct {
	Step        models.Step  `json:"step"`
	Unsatisfied []FieldError `json:"unsatisfied,omitempty"`
}

func (r Result) Passed() bool {
	return len(r.Unsatisfied) == 0
}

// Fields lists the unsatisfied field names in order.
func (r Result) Fields() []string {
	out := make([]string, 0, len(r.Unsatisfied))
	for _, fe := range r.Unsatisfied {
		out = append(out, fe.Field)
	}
	return out
}

func (r *Result) add(field, reason string) {
	r.Unsatisfied = append(r.Unsatisfied, FieldError{Field: field, Reason: reason})
}

// Func is the shape shared by every gate.
type Func func(models.TransferRecord) Result

var gates = map[models.Step]Func{
	models.StepCategory:      Category,
	models.StepDetails:       Details,
	models.StepRecipient:     Recipient,
	models.StepPaymentMethod: PaymentMethod,
	models.StepReview:        Review,
	models.StepPayment:       Payment,
}

// For returns the gate guarding the step after s. The terminal step has none.
func For(s models.Step) (Func, bool) {
	g, ok := gates[s]
	return g, ok
}

// Check evaluates the gate for step s against the record.
func Check(s models.Step, rec models.TransferRecord) Result {
	g, ok := For(s)
	if !ok {
		return Result{Step: s, Unsatisfied: []FieldError{{Field: "step", Reason: "no further steps"}}}
	}
	return g(rec)
}

func Category(rec models.TransferRecord) Result {
	res := Result{Step: models.StepCategory}
	if !rec.Category.IsValid() {
		res.add("category", "choose cross_border or domestic")
	}
	return res
}

// Details checks the amount, the source currency and, for cross-border
// transfers only, the routing details.
func Details(rec models.TransferRecord) Result {
	res := Result{Step: models.StepDetails}
	switch {
	case !rec.Amount.IsPositive():
		res.add("amount", "must be greater than zero")
	case !rec.Amount.Equal(rec.Amount.Round(2)):
		res.add("amount", "at most two decimal places")
	}
	if !govalidator.IsISO4217(rec.SourceCurrency) {
		res.add("source_currency", "must be an ISO 4217 code")
	}
	if rec.Category != models.CategoryCrossBorder {
		return res
	}
	if rec.Routing == nil {
		res.add("routing.destination_country", "required for cross-border transfers")
		res.add("routing.delivery_method", "required for cross-border transfers")
		return res
	}
	if !govalidator.IsISO3166Alpha2(rec.Routing.DestinationCountry) {
		res.add("routing.destination_country", "must be an ISO 3166 alpha-2 code")
	}
	if !rec.Routing.DeliveryMethod.IsValid() {
		res.add("routing.delivery_method", "choose bank_deposit, cash_pickup or mobile_money")
	}
	return res
}

func Recipient(rec models.TransferRecord) Result {
	res := Result{Step: models.StepRecipient}
	r := rec.Recipient
	if strings.TrimSpace(r.Name) == "" {
		res.add("recipient.name", "required")
	}
	if !validPhone(r.Phone) {
		res.add("recipient.phone", "must be 7 to 15 digits")
	}
	if strings.TrimSpace(r.Region) == "" {
		res.add("recipient.region", "required")
	}
	if strings.TrimSpace(r.SubRegion) == "" {
		res.add("recipient.sub_region", "required")
	}
	if r.Email != "" && !govalidator.IsEmail(r.Email) {
		res.add("recipient.email", "invalid email address")
	}
	return res
}

func PaymentMethod(rec models.TransferRecord) Result {
	res := Result{Step: models.StepPaymentMethod}
	switch {
	case rec.PaymentMethod == "":
		res.add("payment_method", "required")
	case !rec.PaymentMethod.AllowedFor(rec.Category):
		res.add("payment_method", "not available for this transfer category")
	}
	if rec.ReceiptEmail != "" && !govalidator.IsEmail(rec.ReceiptEmail) {
		res.add("receipt_email", "invalid email address")
	}
	return res
}

// Review passes only when every earlier gate passes and the sender confirmed
// the summary.
func Review(rec models.TransferRecord) Result {
	res := Result{Step: models.StepReview}
	for _, g := range []Func{Category, Details, Recipient, PaymentMethod} {
		res.Unsatisfied = append(res.Unsatisfied, g(rec).Unsatisfied...)
	}
	if !rec.ReviewConfirmed {
		res.add("review_confirmed", "confirm the transfer summary")
	}
	return res
}

// Payment never passes: leaving the payment step happens only by consuming a
// payment outcome.
func Payment(models.TransferRecord) Result {
	res := Result{Step: models.StepPayment}
	res.add("payment", "awaiting payment outcome")
	return res
}

func validPhone(p string) bool {
	digits := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimPrefix(strings.TrimSpace(p), "+"))
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	return govalidator.IsNumeric(digits)
}
