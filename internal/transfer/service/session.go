package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/models"
	"remitflow/internal/transfer/wizard"
	dErrors "remitflow/pkg/domain-errors"
	"remitflow/pkg/requestcontext"
)

// Start opens a new transfer session, optionally pre-filled with patch.
func (s *Service) Start(ctx context.Context, patch models.TransferPatch) (wizard.State, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("start", start)

	sessionID := uuid.NewString()
	w := wizard.New(sessionID, models.TransferRecord{SourceCurrency: s.defaultCurrency}, s.wizardOptions(ctx, nil)...)
	if !patch.IsEmpty() {
		if err := w.Update(patch); err != nil {
			return wizard.State{}, err
		}
	}
	st := w.State()
	if err := s.store.Create(ctx, &st); err != nil {
		return wizard.State{}, s.translate(err, "create transfer session")
	}
	s.metrics.IncrementSessionsStarted()
	s.logger.InfoContext(ctx, "transfer session started",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID,
	)
	return st, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (wizard.State, error) {
	st, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return wizard.State{}, s.translate(err, "load transfer session")
	}
	return *st, nil
}

// Update merges a partial record into the session.
func (s *Service) Update(ctx context.Context, sessionID string, patch models.TransferPatch) (wizard.State, error) {
	if patch.IsEmpty() {
		return wizard.State{}, dErrors.New(dErrors.CodeBadRequest, "patch must change at least one field")
	}
	return s.mutate(ctx, sessionID, "update", true, func(w *wizard.Wizard) error {
		return w.Update(patch)
	})
}

// NavigationResult pairs a transition with the snapshot after it.
type NavigationResult struct {
	Transition wizard.Transition
	State      wizard.State
}

func (s *Service) Advance(ctx context.Context, sessionID string) (NavigationResult, error) {
	return s.navigate(ctx, sessionID, "advance", (*wizard.Wizard).Advance)
}

func (s *Service) Retreat(ctx context.Context, sessionID string) (NavigationResult, error) {
	return s.navigate(ctx, sessionID, "retreat", (*wizard.Wizard).Retreat)
}

func (s *Service) Jump(ctx context.Context, sessionID string, target models.Step) (NavigationResult, error) {
	return s.navigate(ctx, sessionID, "jump", func(w *wizard.Wizard) (wizard.Transition, error) {
		return w.Jump(target)
	})
}

func (s *Service) navigate(ctx context.Context, sessionID, op string, move func(*wizard.Wizard) (wizard.Transition, error)) (NavigationResult, error) {
	var t wizard.Transition
	st, err := s.mutate(ctx, sessionID, op, true, func(w *wizard.Wizard) error {
		var err error
		t, err = move(w)
		return err
	})
	if err != nil {
		return NavigationResult{}, err
	}
	if t.Blocked != nil {
		s.metrics.IncrementBlocked(t.Blocked.Step.String())
		s.logger.InfoContext(ctx, "step transition blocked",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
			"step", t.Blocked.Step.String(),
			"fields", t.Blocked.Fields(),
		)
	} else if t.To != t.From {
		s.metrics.IncrementTransition(t.To.String())
	}
	return NavigationResult{Transition: t, State: st}, nil
}

// AddWarning appends a dismissible warning to the session. It implements the
// notification warning sink.
func (s *Service) AddWarning(ctx context.Context, sessionID string, code payment.ErrorCode, message string) error {
	_, err := s.mutate(ctx, sessionID, "add_warning", true, func(w *wizard.Wizard) error {
		w.AddWarning(code, message)
		return nil
	})
	return err
}

func (s *Service) DismissWarning(ctx context.Context, sessionID, warningID string) (wizard.State, error) {
	return s.mutate(ctx, sessionID, "dismiss_warning", true, func(w *wizard.Wizard) error {
		return w.DismissWarning(warningID)
	})
}

func (s *Service) DismissPaymentError(ctx context.Context, sessionID string) (wizard.State, error) {
	return s.mutate(ctx, sessionID, "dismiss_payment_error", true, func(w *wizard.Wizard) error {
		w.DismissPaymentError()
		return nil
	})
}
