package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"truconn/internal/access/models"
	"truconn/internal/sentinel"
)

// uniqueViolation is the postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

// PostgresStore persists the access request log in postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, organization_id, user_id, consent_type_id, status, purpose, requested_at, decided_at`

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	query := `
		INSERT INTO access_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		req.ID, req.OrganizationID, req.UserID, req.ConsentTypeID,
		req.Status, req.Purpose, req.RequestedAt, req.DecidedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("creating access request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, req *models.Request) error {
	query := `
		UPDATE access_requests
		SET status = $2, decided_at = $3
		WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, req.ID, req.Status, req.DecidedAt)
	if err != nil {
		return fmt.Errorf("updating access request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding access request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests
		WHERE organization_id = $1 ORDER BY requested_at DESC`
	return s.queryRequests(ctx, query, organizationID)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests
		WHERE user_id = $1 ORDER BY requested_at DESC`
	return s.queryRequests(ctx, query, userID)
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying access requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning access request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM access_requests GROUP BY status`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("counting access requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM access_requests WHERE requested_at >= $1 AND requested_at < $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting access requests: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var req models.Request
	err := row.Scan(&req.ID, &req.OrganizationID, &req.UserID, &req.ConsentTypeID,
		&req.Status, &req.Purpose, &req.RequestedAt, &req.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
