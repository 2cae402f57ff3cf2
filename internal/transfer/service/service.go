// Package service runs transfer sessions: it loads a wizard snapshot,
// applies one operation under the session lock, and persists the result.
// It is also the consumer of delivered payment outcomes and the sink for
// notification warnings.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"remitflow/internal/payment"
	"remitflow/internal/payment/channel"
	"remitflow/internal/payment/orchestrator"
	"remitflow/internal/payment/returnstate"
	"remitflow/internal/transfer/metrics"
	"remitflow/internal/transfer/models"
	"remitflow/internal/transfer/receipt"
	"remitflow/internal/transfer/wizard"
	dErrors "remitflow/pkg/domain-errors"
	"remitflow/pkg/platform/sentinel"
	"remitflow/pkg/requestcontext"
)

// Store persists wizard snapshots with optimistic versioning.
type Store interface {
	Create(ctx context.Context, state *wizard.State) error
	Get(ctx context.Context, sessionID string) (*wizard.State, error)
	Save(ctx context.Context, state *wizard.State) error
	FindSessionByIntent(ctx context.Context, intentID string) (string, error)
}

type ReceiptStore interface {
	Save(ctx context.Context, r receipt.Receipt) (bool, error)
	FindByReference(ctx context.Context, reference string) (receipt.Receipt, error)
}

// Orchestrator starts payment attempts and rebuilds their callbacks.
type Orchestrator interface {
	Execute(ctx context.Context, req payment.ExecuteRequest) payment.PendingOperation
	Callbacks(intent payment.Intent) (*orchestrator.Callbacks, error)
	CompleteReturn(ctx context.Context, intent payment.Intent) payment.Outcome
}

// Outcomes is the result channel outcomes are delivered through.
type Outcomes interface {
	Resolve(ctx context.Context, intentID string, mode channel.Mode, resolve func(context.Context) payment.Outcome) (channel.Delivery, error)
	Subscribe(intentID string) (<-chan payment.Outcome, func())
}

type ReturnVerifier interface {
	Verify(state string) (*returnstate.Claims, error)
}

// Notifier queues the confirmation receipt.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, record models.TransferRecord, reference string) error
}

const maxSaveAttempts = 3

// Service orchestrates transfer sessions.
type Service struct {
	store           Store
	receipts        ReceiptStore
	orchestrator    Orchestrator
	outcomes        Outcomes
	verifier        ReturnVerifier
	notifier        Notifier
	logger          *slog.Logger
	metrics         *metrics.Metrics
	locks           *sessionLocks
	defaultCurrency string
	now             func() time.Time
	newID           func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithReceiptStore(r ReceiptStore) Option {
	return func(s *Service) { s.receipts = r }
}

// WithDefaultCurrency presets the source currency of new sessions.
func WithDefaultCurrency(currency string) Option {
	return func(s *Service) { s.defaultCurrency = currency }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.locks.timeout = d }
}

// New constructs a Service.
func New(store Store, orch Orchestrator, outcomes Outcomes, verifier ReturnVerifier, opts ...Option) *Service {
	s := &Service{
		store:        store,
		receipts:     receipt.NewInMemoryStore(),
		orchestrator: orch,
		outcomes:     outcomes,
		verifier:     verifier,
		logger:       slog.Default(),
		locks:        &sessionLocks{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notice is a confirmation captured while a wizard mutates; it is sent only
// after the snapshot that produced it has been saved.
type notice struct {
	sessionID string
	record    models.TransferRecord
	reference string
}

type deferredNotifier struct {
	notices []notice
}

func (d *deferredNotifier) Notify(_ context.Context, sessionID string, record models.TransferRecord, reference string) error {
	d.notices = append(d.notices, notice{sessionID: sessionID, record: record, reference: reference})
	return nil
}

// clock pins the request's time so every timestamp written while handling
// one request agrees. An explicit WithClock wins.
func (s *Service) clock(ctx context.Context) func() time.Time {
	if s.now != nil {
		return s.now
	}
	return func() time.Time { return requestcontext.Now(ctx).UTC() }
}

func (s *Service) wizardOptions(ctx context.Context, n wizard.Notifier) []wizard.Option {
	opts := []wizard.Option{
		wizard.WithOrchestrator(s.orchestrator),
		wizard.WithNotifier(n),
		wizard.WithClock(s.clock(ctx)),
	}
	if s.newID != nil {
		opts = append(opts, wizard.WithIDGenerator(s.newID))
	}
	return opts
}

// mutate loads sessionID, applies fn and saves the result. Version conflicts
// from another instance are retried when retry is set; operations with
// external side effects pass false and surface the conflict instead.
func (s *Service) mutate(ctx context.Context, sessionID, op string, retry bool, fn func(w *wizard.Wizard) error) (wizard.State, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation(op, start)

	var (
		out     wizard.State
		notices []notice
	)
	err := s.locks.run(ctx, sessionID, func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			current, err := s.store.Get(ctx, sessionID)
			if err != nil {
				return s.translate(err, "load transfer session")
			}
			deferred := &deferredNotifier{}
			w := wizard.Restore(*current, s.wizardOptions(ctx, deferred)...)
			if err := fn(w); err != nil {
				return err
			}
			next := w.State()
			err = s.store.Save(ctx, &next)
			if errors.Is(err, sentinel.ErrConflict) && retry && attempt < maxSaveAttempts {
				s.metrics.IncrementStoreConflict()
				s.logger.WarnContext(ctx, "transfer session changed concurrently, retrying",
					"request_id", requestcontext.RequestID(ctx),
					"session_id", sessionID,
					"operation", op,
					"attempt", attempt,
				)
				continue
			}
			if err != nil {
				return s.translate(err, "save transfer session")
			}
			out = next
			notices = deferred.notices
			return nil
		}
	})
	if err != nil {
		return wizard.State{}, err
	}
	s.dispatch(ctx, notices)
	return out, nil
}

func (s *Service) dispatch(ctx context.Context, notices []notice) {
	if s.notifier == nil {
		return
	}
	for _, n := range notices {
		if err := s.notifier.Notify(ctx, n.sessionID, n.record, n.reference); err != nil {
			s.logger.ErrorContext(ctx, "failed to queue confirmation",
				"request_id", requestcontext.RequestID(ctx),
				"session_id", n.sessionID,
				"error", err,
			)
			if werr := s.AddWarning(ctx, n.sessionID, payment.CodeNotificationDispatchFailed, notificationWarning); werr != nil {
				s.logger.ErrorContext(ctx, "failed to record notification warning",
					"request_id", requestcontext.RequestID(ctx),
					"session_id", n.sessionID,
					"error", werr,
				)
			}
		}
	}
}

const notificationWarning = "The confirmation receipt could not be sent."

// translate maps store sentinels to domain errors. Domain errors pass through.
func (s *Service) translate(err error, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "transfer session not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "transfer session was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}
