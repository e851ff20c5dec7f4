// Package billing stores the tenant's local quote/invoice records. The
// payment-session id is unique per checkout and acts as the idempotency key
// for the sent→paid transition.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record statuses.
const (
	StatusSent = "sent"
	StatusPaid = "paid"
)

// ErrRecordNotFound is returned when no billing record matches.
var ErrRecordNotFound = errors.New("billing record not found")

// Record is one quote or invoice row.
type Record struct {
	ID            uuid.UUID
	LocationID    string
	OpportunityID string
	Kind          string // deposit | invoice
	SessionID     string
	Status        string
	ReceiptURL    string
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InsertParams describes a new billing record, written when a quote or
// invoice checkout link is issued.
type InsertParams struct {
	LocationID    string
	OpportunityID string
	Kind          string
	SessionID     string
}

// Repository reads and writes billing records.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a billing repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records a newly issued checkout session as status=sent.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO billing_records (location_id, opportunity_id, kind, session_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.LocationID, p.OpportunityID, p.Kind, p.SessionID, StatusSent,
	).Scan(&id)
	return id, err
}

// MarkPaid transitions the record matched by session id to paid, stamping
// the receipt URL and the verification instant. The conditional update makes
// retried webhooks for the same session a no-op: paidAt is set exactly once.
// Returns true when this call performed the transition.
func (r *Repository) MarkPaid(ctx context.Context, sessionID, receiptURL string, paidAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE billing_records
		SET status = $2, receipt_url = $3, paid_at = $4, updated_at = NOW()
		WHERE session_id = $1 AND status <> $2`,
		sessionID, StatusPaid, receiptURL, paidAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetBySessionID returns the record for one checkout session.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, location_id, COALESCE(opportunity_id, ''), kind, session_id,
		       status, COALESCE(receipt_url, ''), paid_at, created_at, updated_at
		FROM billing_records
		WHERE session_id = $1`, sessionID)

	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.LocationID,
		&rec.OpportunityID,
		&rec.Kind,
		&rec.SessionID,
		&rec.Status,
		&rec.ReceiptURL,
		&rec.PaidAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}
