package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"remitflow/internal/payment"
	"remitflow/internal/transfer/models"
	"remitflow/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfer_receipts (
	reference         TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	intent_id         TEXT NOT NULL,
	category          TEXT NOT NULL,
	strategy          TEXT NOT NULL,
	amount            NUMERIC(18,2) NOT NULL,
	currency          CHAR(3) NOT NULL,
	captured_amount   NUMERIC(18,2) NOT NULL,
	captured_currency CHAR(3) NOT NULL,
	recipient_name    TEXT NOT NULL,
	completed_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transfer_receipts_session_idx ON transfer_receipts (session_id);
`

// PostgresStore persists receipts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the receipts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure receipt schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, r Receipt) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_receipts (
			reference, session_id, intent_id, category, strategy,
			amount, currency, captured_amount, captured_currency,
			recipient_name, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (reference) DO NOTHING`,
		r.Reference, r.SessionID, r.IntentID, string(r.Category), string(r.Strategy),
		r.Amount, r.Currency, r.CapturedAmount, r.CapturedCurrency,
		r.RecipientName, r.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("save receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save receipt: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) FindByReference(ctx context.Context, reference string) (Receipt, error) {
	var (
		r        Receipt
		category string
		strategy string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT reference, session_id, intent_id, category, strategy,
			amount, currency, captured_amount, captured_currency,
			recipient_name, completed_at
		FROM transfer_receipts WHERE reference = $1`, reference,
	).Scan(
		&r.Reference, &r.SessionID, &r.IntentID, &category, &strategy,
		&r.Amount, &r.Currency, &r.CapturedAmount, &r.CapturedCurrency,
		&r.RecipientName, &r.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("find receipt: %w", err)
	}
	r.Category = models.Category(category)
	r.Strategy = payment.Strategy(strategy)
	r.CompletedAt = r.CompletedAt.UTC()
	return r, nil
}
