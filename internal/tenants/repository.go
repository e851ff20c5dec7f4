// Package tenants stores per-tenant platform connections: the location id,
// the current access token and the encrypted payment-processor secret.
// Token acquisition and refresh are handled by an external worker that
// writes into this table; the engine only reads.
package tenants

import (
	"context"
	"errors"
	"time"

	"jobflow_backend/internal/crm"
	"jobflow_backend/platform/secrets"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConnectionNotFound is returned when no connection exists for a location.
var ErrConnectionNotFound = errors.New("tenant connection not found")

// ErrNoProcessorSecret is returned when a tenant has no payment-processor
// secret configured. Payment webhooks for that tenant are rejected.
var ErrNoProcessorSecret = errors.New("no processor secret for location")

// Connection is one tenant's link to the platform.
type Connection struct {
	ID                 uuid.UUID
	LocationID         string
	AccessToken        string
	ProcessorSecretEnc string
	ReviewURL          string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Repository reads tenant connections from the local store.
type Repository struct {
	pool       *pgxpool.Pool
	secretsKey []byte
}

// New creates a tenant connection repository. secretsKey decrypts processor
// secrets at rest; nil disables secret resolution.
func New(pool *pgxpool.Pool, secretsKey []byte) *Repository {
	return &Repository{pool: pool, secretsKey: secretsKey}
}

const connectionColumns = `id, location_id, access_token, COALESCE(processor_secret_enc, ''), COALESCE(review_url, ''), is_active, created_at, updated_at`

// ListActive returns every tenant with an active platform connection.
func (r *Repository) ListActive(ctx context.Context) ([]Connection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+connectionColumns+`
		FROM tenant_connections
		WHERE is_active = TRUE
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// GetByLocationID returns the connection for one location.
func (r *Repository) GetByLocationID(ctx context.Context, locationID string) (Connection, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+connectionColumns+`
		FROM tenant_connections
		WHERE location_id = $1`, locationID)

	conn, err := scanConnection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrConnectionNotFound
	}
	return conn, err
}

// AccessToken implements crm.TokenProvider. A missing, inactive or
// token-less connection yields crm.ErrNoToken, which callers treat as
// "tenant disconnected", not an error.
func (r *Repository) AccessToken(ctx context.Context, locationID string) (string, error) {
	conn, err := r.GetByLocationID(ctx, locationID)
	if errors.Is(err, ErrConnectionNotFound) {
		return "", crm.ErrNoToken
	}
	if err != nil {
		return "", err
	}
	if !conn.IsActive || conn.AccessToken == "" {
		return "", crm.ErrNoToken
	}
	return conn.AccessToken, nil
}

// ProcessorSecret returns the tenant's decrypted payment-processor secret.
func (r *Repository) ProcessorSecret(ctx context.Context, locationID string) (string, error) {
	conn, err := r.GetByLocationID(ctx, locationID)
	if errors.Is(err, ErrConnectionNotFound) {
		return "", ErrNoProcessorSecret
	}
	if err != nil {
		return "", err
	}
	if conn.ProcessorSecretEnc == "" || len(r.secretsKey) == 0 {
		return "", ErrNoProcessorSecret
	}
	return secrets.Decrypt(conn.ProcessorSecretEnc, r.secretsKey)
}

func scanConnection(row pgx.Row) (Connection, error) {
	var conn Connection
	err := row.Scan(
		&conn.ID,
		&conn.LocationID,
		&conn.AccessToken,
		&conn.ProcessorSecretEnc,
		&conn.ReviewURL,
		&conn.IsActive,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	return conn, err
}
