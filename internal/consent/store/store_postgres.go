package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"truconn/internal/consent/models"
	"truconn/internal/sentinel"
)

// dbExecutor abstracts *sql.DB and *sql.Tx so queries run the same inside
// and outside a transaction.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists the consent ledger in postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveType(ctx context.Context, ct *models.ConsentType) error {
	query := `
		INSERT INTO consent_types (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, ct.ID, ct.Name, ct.CreatedAt); err != nil {
		return fmt.Errorf("saving consent type: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindType(ctx context.Context, id uuid.UUID) (*models.ConsentType, error) {
	query := `SELECT id, name, created_at FROM consent_types WHERE id = $1`
	var ct models.ConsentType
	err := s.db.QueryRowContext(ctx, query, id).Scan(&ct.ID, &ct.Name, &ct.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding consent type: %w", err)
	}
	return &ct, nil
}

func (s *PostgresStore) ListTypes(ctx context.Context) ([]*models.ConsentType, error) {
	query := `SELECT id, name, created_at FROM consent_types ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing consent types: %w", err)
	}
	defer rows.Close()

	var types []*models.ConsentType
	for rows.Next() {
		var ct models.ConsentType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning consent type: %w", err)
		}
		types = append(types, &ct)
	}
	return types, rows.Err()
}

// SaveGrantWithHistory upserts the grant and writes its history entry in a
// single transaction so the ledger and its trail never diverge.
func (s *PostgresStore) SaveGrantWithHistory(ctx context.Context, grant *models.Grant, entry *models.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO consent_grants
			(id, user_id, consent_type_id, access, granted_at, revoked_at, expires_at, duration_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, consent_type_id) DO UPDATE SET
			access = EXCLUDED.access,
			granted_at = EXCLUDED.granted_at,
			revoked_at = EXCLUDED.revoked_at,
			expires_at = EXCLUDED.expires_at,
			duration_days = EXCLUDED.duration_days
		RETURNING id`
	var storedID uuid.UUID
	err = tx.QueryRowContext(ctx, upsert,
		grant.ID, grant.UserID, grant.ConsentTypeID, grant.Access,
		grant.GrantedAt, grant.RevokedAt, grant.ExpiresAt, grant.DurationDays,
	).Scan(&storedID)
	if err != nil {
		return fmt.Errorf("upserting consent grant: %w", err)
	}
	grant.ID = storedID

	insertHistory := `
		INSERT INTO consent_history
			(id, grant_id, action, previous_value, new_value, changed_at, changed_by, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(ctx, insertHistory,
		entry.ID, storedID, entry.Action, entry.PreviousValue,
		entry.NewValue, entry.ChangedAt, entry.ChangedBy, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("inserting consent history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing consent write: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindGrant(ctx context.Context, userID string, consentTypeID uuid.UUID) (*models.Grant, error) {
	query := `
		SELECT id, user_id, consent_type_id, access, granted_at, revoked_at, expires_at, duration_days
		FROM consent_grants
		WHERE user_id = $1 AND consent_type_id = $2`
	grant, err := scanGrant(s.db.QueryRowContext(ctx, query, userID, consentTypeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding consent grant: %w", err)
	}
	return grant, nil
}

func (s *PostgresStore) ListGrantsByUser(ctx context.Context, userID string) ([]*models.Grant, error) {
	query := `
		SELECT id, user_id, consent_type_id, access, granted_at, revoked_at, expires_at, duration_days
		FROM consent_grants
		WHERE user_id = $1
		ORDER BY consent_type_id`
	return s.queryGrants(ctx, query, userID)
}

func (s *PostgresStore) ListExpiring(ctx context.Context, userID string) ([]*models.Grant, error) {
	query := `
		SELECT id, user_id, consent_type_id, access, granted_at, revoked_at, expires_at, duration_days
		FROM consent_grants
		WHERE user_id = $1 AND access = TRUE AND expires_at IS NOT NULL`
	return s.queryGrants(ctx, query, userID)
}

func (s *PostgresStore) queryGrants(ctx context.Context, query string, args ...any) ([]*models.Grant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying consent grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning consent grant: %w", err)
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (s *PostgresStore) ListHistoryByUser(ctx context.Context, userID string, consentTypeID *uuid.UUID) ([]*models.HistoryEntry, error) {
	query := `
		SELECT h.id, h.grant_id, h.action, h.previous_value, h.new_value, h.changed_at, h.changed_by, h.reason
		FROM consent_history h
		JOIN consent_grants g ON g.id = h.grant_id
		WHERE g.user_id = $1 AND ($2::uuid IS NULL OR g.consent_type_id = $2)
		ORDER BY h.changed_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID, consentTypeID)
	if err != nil {
		return nil, fmt.Errorf("querying consent history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		err := rows.Scan(&entry.ID, &entry.GrantID, &entry.Action, &entry.PreviousValue,
			&entry.NewValue, &entry.ChangedAt, &entry.ChangedBy, &entry.Reason)
		if err != nil {
			return nil, fmt.Errorf("scanning consent history: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CountGrantsByAccess(ctx context.Context) (active int, revoked int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE access),
			COUNT(*) FILTER (WHERE NOT access)
		FROM consent_grants`
	if err := s.db.QueryRowContext(ctx, query).Scan(&active, &revoked); err != nil {
		return 0, 0, fmt.Errorf("counting consent grants: %w", err)
	}
	return active, revoked, nil
}

func (s *PostgresStore) CountHistoryBetween(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM consent_history WHERE changed_at >= $1 AND changed_at < $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting consent history: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*models.Grant, error) {
	var grant models.Grant
	err := row.Scan(&grant.ID, &grant.UserID, &grant.ConsentTypeID, &grant.Access,
		&grant.GrantedAt, &grant.RevokedAt, &grant.ExpiresAt, &grant.DurationDays)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}
