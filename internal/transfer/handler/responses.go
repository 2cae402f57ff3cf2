package handler

import (
	"time"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/gate"
	"remitflow/internal/transfer/models"
	"remitflow/internal/transfer/wizard"
)

// SessionResponse is the JSON view of a wizard snapshot.
type SessionResponse struct {
	SessionID    string                    `json:"session_id"`
	Position     string                    `json:"position"`
	Highest      string                    `json:"highest"`
	Phase        wizard.Phase              `json:"phase"`
	Record       models.TransferRecord     `json:"record"`
	IntentID     string                    `json:"intent_id,omitempty"`
	Pending      *payment.PendingOperation `json:"pending,omitempty"`
	Settlement   *wizard.Settlement        `json:"settlement,omitempty"`
	PaymentError *wizard.PaymentError      `json:"payment_error,omitempty"`
	Warnings     []wizard.Warning          `json:"warnings"`
	Version      int64                     `json:"version"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

func FromState(st wizard.State) SessionResponse {
	resp := SessionResponse{
		SessionID:    st.SessionID,
		Position:     st.Position.String(),
		Highest:      st.Highest.String(),
		Phase:        st.Phase,
		Record:       st.Record,
		Pending:      st.Pending,
		Settlement:   st.Settlement,
		PaymentError: st.PaymentError,
		Warnings:     st.Warnings,
		Version:      st.Version,
		UpdatedAt:    st.UpdatedAt,
	}
	if st.Intent != nil {
		resp.IntentID = st.Intent.ID
	}
	if resp.Warnings == nil {
		resp.Warnings = []wizard.Warning{}
	}
	return resp
}

type BlockedResponse struct {
	Step        string            `json:"step"`
	Unsatisfied []gate.FieldError `json:"unsatisfied"`
}

type TransitionResponse struct {
	From    string           `json:"from"`
	To      string           `json:"to"`
	Blocked *BlockedResponse `json:"blocked,omitempty"`
}

type NavigationResponse struct {
	Transition TransitionResponse `json:"transition"`
	Session    SessionResponse    `json:"session"`
}

func fromTransition(t wizard.Transition) TransitionResponse {
	resp := TransitionResponse{From: t.From.String(), To: t.To.String()}
	if t.Blocked != nil {
		resp.Blocked = &BlockedResponse{Step: t.Blocked.Step.String(), Unsatisfied: t.Blocked.Unsatisfied}
	}
	return resp
}

type PaymentResponse struct {
	Operation payment.PendingOperation `json:"operation"`
	Session   SessionResponse          `json:"session"`
}

// AbandonResponse reports whether the attempt had already resolved another
// way before the sender gave up on it.
type AbandonResponse struct {
	Duplicate bool            `json:"duplicate"`
	Session   SessionResponse `json:"session"`
}

type AwaitResponse struct {
	TimedOut bool            `json:"timed_out"`
	Session  SessionResponse `json:"session"`
}
