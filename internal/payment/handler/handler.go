package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"remitflow/internal/payment"
	"remitflow/internal/payment/channel"
	"remitflow/internal/transfer/service"
	dErrors "remitflow/pkg/domain-errors"
	"remitflow/pkg/platform/httputil"
	strutil "remitflow/pkg/platform/strings"
	"remitflow/pkg/requestcontext"
)

// Service delivers payment signals into transfer sessions.
type Service interface {
	HandleWidgetEvent(ctx context.Context, intentID string, ev service.WidgetEvent) (channel.Delivery, error)
	HandleReturn(ctx context.Context, entry channel.ReturnEntry, state string) (service.ReturnResult, error)
}

// Handler serves the in-context widget callbacks and the redirect return route.
type Handler struct {
	service    Service
	appBaseURL string
	logger     *slog.Logger
}

func New(service Service, appBaseURL string, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		logger:     logger,
	}
}

// Register mounts payment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/payments/{intentID}/events", h.HandleEvent)
	r.Get("/transfers/return/{variant}", h.HandleReturn)
}

const maxReasonBytes = 500

// EventRequest is a widget event. The type may also come from ?type= so the
// endpoints handed to the widget can be posted to with an empty body.
type EventRequest struct {
	Type      string `json:"type"`
	CardToken string `json:"card_token,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (r *EventRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	switch r.Type {
	case service.EventApprove, service.EventCancel, service.EventError:
	case "":
		return dErrors.New(dErrors.CodeValidation, "type is required")
	default:
		return dErrors.New(dErrors.CodeValidation, "type must be approve, cancel or error")
	}
	r.Reason = strutil.Truncate(r.Reason, maxReasonBytes)
	return nil
}

type EventResponse struct {
	IntentID  string           `json:"intent_id"`
	Mode      channel.Mode     `json:"mode"`
	Duplicate bool             `json:"duplicate"`
	Outcome   *payment.Outcome `json:"outcome,omitempty"`
}

// HandleEvent handles POST /payments/{intentID}/events.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	intentID := chi.URLParam(r, "intentID")

	req := &EventRequest{Type: r.URL.Query().Get("type")}
	if r.ContentLength != 0 {
		decoded, ok := httputil.DecodeAndPrepare[EventRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		if decoded.Type == "" {
			decoded.Type = req.Type
		}
		req = decoded
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	d, err := h.service.HandleWidgetEvent(ctx, intentID, service.WidgetEvent{
		Type:      req.Type,
		CardToken: req.CardToken,
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "widget event rejected",
			"request_id", requestID,
			"intent_id", intentID,
			"type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := EventResponse{IntentID: intentID, Mode: channel.ModeInContext, Duplicate: d.Duplicate}
	if !d.Duplicate {
		resp.Outcome = &d.Outcome
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleReturn handles GET /transfers/return/{variant}. The sender is sent
// back to the application with the delivered outcome kind; a replayed return
// reports "duplicate" and the application reloads the session.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	variant := chi.URLParam(r, "variant")
	q := r.URL.Query()

	res, err := h.service.HandleReturn(ctx, channel.ReturnEntry{
		Variant:   variant,
		Reference: q.Get("reference"),
	}, q.Get("state"))
	if err != nil {
		h.logger.WarnContext(ctx, "return route rejected",
			"request_id", requestID,
			"variant", variant,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	outcome := "duplicate"
	if !res.Delivery.Duplicate {
		outcome = string(res.Delivery.Outcome.Kind)
	}
	target := h.appBaseURL + "/transfers/" + url.PathEscape(res.SessionID) + "?outcome=" + url.QueryEscape(outcome)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
