package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"truconn/internal/organization/models"
	"truconn/internal/sentinel"
)

// PostgresStore persists the organization directory in postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, owner_user_id, name, email, website, address, is_verified,
	trust_score, trust_level, last_calculated, certificate_issued, certificate_issued_at, created_at`

func (s *PostgresStore) Save(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (` + orgColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			website = EXCLUDED.website,
			address = EXCLUDED.address,
			is_verified = EXCLUDED.is_verified`
	_, err := s.db.ExecContext(ctx, query,
		org.ID, org.OwnerUserID, org.Name, org.Email, org.Website, org.Address, org.IsVerified,
		org.TrustScore, org.TrustLevel, org.LastCalculated,
		org.CertificateIssued, org.CertificateIssuedAt, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding organization: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, ownerUserID string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE owner_user_id = $1`
	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, ownerUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding organization by owner: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpdateTrustSnapshot writes the score, level, and certificate transition in
// one statement so the issue-once semantics hold under concurrent updates.
func (s *PostgresStore) UpdateTrustSnapshot(ctx context.Context, id uuid.UUID, score float64, level string, calculatedAt time.Time) (models.CertificateChange, error) {
	query := `
		WITH prior AS (
			SELECT certificate_issued FROM organizations WHERE id = $1 FOR UPDATE
		)
		UPDATE organizations o SET
			trust_score = $2,
			trust_level = $3,
			last_calculated = $4,
			certificate_issued = ($2 >= 75.0),
			certificate_issued_at = CASE
				WHEN $2 >= 75.0 AND o.certificate_issued THEN o.certificate_issued_at
				WHEN $2 >= 75.0 THEN $4
				ELSE NULL
			END
		FROM prior
		WHERE o.id = $1
		RETURNING prior.certificate_issued, o.certificate_issued`
	var wasIssued, nowIssued bool
	err := s.db.QueryRowContext(ctx, query, id, score, level, calculatedAt).
		Scan(&wasIssued, &nowIssued)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CertificateUnchanged, sentinel.ErrNotFound
	}
	if err != nil {
		return models.CertificateUnchanged, fmt.Errorf("updating trust snapshot: %w", err)
	}
	switch {
	case nowIssued && !wasIssued:
		return models.CertificateIssued, nil
	case wasIssued && !nowIssued:
		return models.CertificateRevoked, nil
	default:
		return models.CertificateUnchanged, nil
	}
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting organizations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountVerified(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM organizations WHERE is_verified`
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting verified organizations: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(&org.ID, &org.OwnerUserID, &org.Name, &org.Email, &org.Website,
		&org.Address, &org.IsVerified, &org.TrustScore, &org.TrustLevel,
		&org.LastCalculated, &org.CertificateIssued, &org.CertificateIssuedAt, &org.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &org, nil
}
