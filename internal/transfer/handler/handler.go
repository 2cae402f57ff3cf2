package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"remitflow/internal/transfer/models"
	"remitflow/internal/transfer/receipt"
	"remitflow/internal/transfer/service"
	"remitflow/internal/transfer/wizard"
	dErrors "remitflow/pkg/domain-errors"
	"remitflow/pkg/platform/httputil"
	"remitflow/pkg/requestcontext"
)

const (
	defaultAwait = 25 * time.Second
	maxAwait     = 30 * time.Second
)

// Service defines the transfer session operations the handler exposes.
type Service interface {
	Start(ctx context.Context, patch models.TransferPatch) (wizard.State, error)
	Get(ctx context.Context, sessionID string) (wizard.State, error)
	Update(ctx context.Context, sessionID string, patch models.TransferPatch) (wizard.State, error)
	Advance(ctx context.Context, sessionID string) (service.NavigationResult, error)
	Retreat(ctx context.Context, sessionID string) (service.NavigationResult, error)
	Jump(ctx context.Context, sessionID string, target models.Step) (service.NavigationResult, error)
	BeginPayment(ctx context.Context, sessionID string) (service.PaymentStart, error)
	AbandonPayment(ctx context.Context, sessionID string) (service.AbandonResult, error)
	AwaitOutcome(ctx context.Context, sessionID string, wait time.Duration) (service.AwaitResult, error)
	DismissWarning(ctx context.Context, sessionID, warningID string) (wizard.State, error)
	DismissPaymentError(ctx context.Context, sessionID string) (wizard.State, error)
	Receipt(ctx context.Context, reference string) (receipt.Receipt, error)
}

// Handler wires transfer wizard endpoints to the transfer service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts transfer endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/transfers", h.HandleStart)
	r.Route("/transfers/{sessionID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Patch("/", h.HandleUpdate)
		r.Post("/advance", h.HandleAdvance)
		r.Post("/retreat", h.HandleRetreat)
		r.Post("/jump", h.HandleJump)
		r.Post("/payment", h.HandleBeginPayment)
		r.Delete("/payment", h.HandleAbandonPayment)
		r.Get("/payment/outcome", h.HandleAwaitOutcome)
		r.Delete("/payment/error", h.HandleDismissPaymentError)
		r.Delete("/warnings/{warningID}", h.HandleDismissWarning)
	})
	r.Get("/receipts/{reference}", h.HandleReceipt)
}

// sessionContext tags the request context with the path's session id.
func sessionContext(r *http.Request) (context.Context, string) {
	sessionID := chi.URLParam(r, "sessionID")
	return requestcontext.WithSessionID(r.Context(), sessionID), sessionID
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg, sessionID string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID,
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// HandleStart handles POST /transfers. The body is an optional patch.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var patch models.TransferPatch
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[PatchRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		patch = req.TransferPatch
	}

	st, err := h.service.Start(ctx, patch)
	if err != nil {
		h.fail(ctx, w, "failed to start transfer", "", err)
		return
	}
	w.Header().Set("Location", "/transfers/"+st.SessionID)
	httputil.WriteJSON(w, http.StatusCreated, FromState(st))
}

// HandleGet handles GET /transfers/{sessionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	st, err := h.service.Get(ctx, sessionID)
	if err != nil {
		h.fail(ctx, w, "failed to load transfer", sessionID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromState(st))
}

// HandleUpdate handles PATCH /transfers/{sessionID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	req, ok := httputil.DecodeAndPrepare[PatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	st, err := h.service.Update(ctx, sessionID, req.TransferPatch)
	if err != nil {
		h.fail(ctx, w, "failed to update transfer", sessionID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromState(st))
}

func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	h.writeNavigation(ctx, w, sessionID)(h.service.Advance(ctx, sessionID))
}

func (h *Handler) HandleRetreat(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	h.writeNavigation(ctx, w, sessionID)(h.service.Retreat(ctx, sessionID))
}

func (h *Handler) HandleJump(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	req, ok := httputil.DecodeAndPrepare[JumpRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.writeNavigation(ctx, w, sessionID)(h.service.Jump(ctx, sessionID, req.parsed))
}

// writeNavigation renders a navigation result. A blocked transition is a
// normal 200 response carrying the unsatisfied fields.
func (h *Handler) writeNavigation(ctx context.Context, w http.ResponseWriter, sessionID string) func(service.NavigationResult, error) {
	return func(res service.NavigationResult, err error) {
		if err != nil {
			h.fail(ctx, w, "navigation failed", sessionID, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, NavigationResponse{
			Transition: fromTransition(res.Transition),
			Session:    FromState(res.State),
		})
	}
}

// HandleBeginPayment handles POST /transfers/{sessionID}/payment.
func (h *Handler) HandleBeginPayment(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	start, err := h.service.BeginPayment(ctx, sessionID)
	if err != nil {
		h.fail(ctx, w, "failed to begin payment", sessionID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PaymentResponse{
		Operation: start.Pending,
		Session:   FromState(start.State),
	})
}

// HandleAbandonPayment handles DELETE /transfers/{sessionID}/payment.
func (h *Handler) HandleAbandonPayment(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	res, err := h.service.AbandonPayment(ctx, sessionID)
	if err != nil {
		h.fail(ctx, w, "failed to abandon payment", sessionID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AbandonResponse{
		Duplicate: res.Delivery.Duplicate,
		Session:   FromState(res.State),
	})
}

// HandleAwaitOutcome handles GET /transfers/{sessionID}/payment/outcome?wait=N.
func (h *Handler) HandleAwaitOutcome(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	wait := defaultAwait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "wait must be a non-negative number of seconds"))
			return
		}
		wait = min(time.Duration(secs)*time.Second, maxAwait)
	}
	res, err := h.service.AwaitOutcome(ctx, sessionID, wait)
	if err != nil {
		h.fail(ctx, w, "failed waiting for payment outcome", sessionID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AwaitResponse{TimedOut: res.TimedOut, Session: FromState(res.State)})
}

func (h *Handler) HandleDismissWarning(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	st, err := h.service.DismissWarning(ctx, sessionID, chi.URLParam(r, "warningID"))
	if err != nil {
		h.fail(ctx, w, "failed to dismiss warning", sessionID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromState(st))
}

func (h *Handler) HandleDismissPaymentError(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := sessionContext(r)
	st, err := h.service.DismissPaymentError(ctx, sessionID)
	if err != nil {
		h.fail(ctx, w, "failed to dismiss payment error", sessionID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromState(st))
}

// HandleReceipt handles GET /receipts/{reference}.
func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reference := chi.URLParam(r, "reference")
	rec, err := h.service.Receipt(ctx, reference)
	if err != nil {
		h.fail(ctx, w, "failed to load receipt", "", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}
