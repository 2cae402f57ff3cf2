package handler

import (
	"strings"

	"remitflow/internal/transfer/models"
	dErrors "remitflow/pkg/domain-errors"
)

// PatchRequest is the body of POST /transfers and PATCH /transfers/{id}.
// Field semantics are checked by the step gates, not here.
type PatchRequest struct {
	models.TransferPatch
}

// Validate normalizes free-text codes.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *PatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.SourceCurrency != nil {
		upper := strings.ToUpper(strings.TrimSpace(*r.SourceCurrency))
		r.SourceCurrency = &upper
	}
	if r.Routing != nil && r.Routing.DestinationCountry != nil {
		upper := strings.ToUpper(strings.TrimSpace(*r.Routing.DestinationCountry))
		r.Routing.DestinationCountry = &upper
	}
	if r.ReceiptEmail != nil {
		trimmed := strings.TrimSpace(*r.ReceiptEmail)
		r.ReceiptEmail = &trimmed
	}
	return nil
}

// JumpRequest is the body of POST /transfers/{id}/jump.
type JumpRequest struct {
	Step string `json:"step"`

	parsed models.Step
}

func (r *JumpRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	step, ok := models.ParseStep(strings.TrimSpace(r.Step))
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "step must name a wizard step")
	}
	r.parsed = step
	return nil
}
