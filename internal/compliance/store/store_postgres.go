package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"truconn/internal/compliance/models"
	"truconn/internal/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists audits and violation reports. The trailing-window
// idempotency check runs application-side; a partial unique index over
// unresolved rows on (organization, key, time bucket) backs the
// check-then-create race so two concurrent scans cannot both insert.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// windowBucket coarsens a timestamp to the idempotency window for the
// uniqueness backstop.
func windowBucket(at time.Time, window time.Duration) int64 {
	return at.Unix() / int64(window.Seconds())
}

func (s *PostgresStore) CreateAuditIfAbsent(ctx context.Context, audit *models.Audit, window time.Duration) (bool, error) {
	existsQuery := `
		SELECT EXISTS (
			SELECT 1 FROM compliance_audits
			WHERE organization_id = $1 AND rule_name = $2 AND detected_at >= $3
			  AND status <> 'RESOLVED'
		)`
	var exists bool
	cutoff := audit.DetectedAt.Add(-window)
	if err := s.db.QueryRowContext(ctx, existsQuery, audit.OrganizationID, audit.RuleName, cutoff).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking existing audit: %w", err)
	}
	if exists {
		return false, nil
	}

	details, err := json.Marshal(audit.Details)
	if err != nil {
		return false, fmt.Errorf("encoding audit details: %w", err)
	}
	insert := `
		INSERT INTO compliance_audits
			(id, organization_id, rule_name, severity, description, details,
			 recommendation, status, detected_at, resolved_at, window_bucket)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = s.db.ExecContext(ctx, insert,
		audit.ID, audit.OrganizationID, audit.RuleName, audit.Severity,
		audit.Description, details, audit.Recommendation, audit.Status,
		audit.DetectedAt, audit.ResolvedAt, windowBucket(audit.DetectedAt, window))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting audit: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) CreateViolationIfAbsent(ctx context.Context, violation *models.ViolationReport, window time.Duration) (bool, error) {
	existsQuery := `
		SELECT EXISTS (
			SELECT 1 FROM violation_reports
			WHERE organization_id = $1 AND violation_type = $2 AND created_at >= $3
			  AND NOT resolved
		)`
	var exists bool
	cutoff := violation.CreatedAt.Add(-window)
	if err := s.db.QueryRowContext(ctx, existsQuery, violation.OrganizationID, violation.ViolationType, cutoff).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking existing violation: %w", err)
	}
	if exists {
		return false, nil
	}

	insert := `
		INSERT INTO violation_reports
			(id, organization_id, violation_type, severity, description,
			 affected_users_count, reported_to_oversight, resolved,
			 related_audit_id, created_at, window_bucket)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.db.ExecContext(ctx, insert,
		violation.ID, violation.OrganizationID, violation.ViolationType,
		violation.Severity, violation.Description, violation.AffectedUsersCount,
		violation.ReportedToOversight, violation.Resolved, violation.RelatedAuditID,
		violation.CreatedAt, windowBucket(violation.CreatedAt, window))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting violation report: %w", err)
	}
	return true, nil
}

const auditColumns = `id, organization_id, rule_name, severity, description, details,
	recommendation, status, detected_at, resolved_at`

func (s *PostgresStore) GetAudit(ctx context.Context, id uuid.UUID) (*models.Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM compliance_audits WHERE id = $1`
	audit, err := scanAudit(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding audit: %w", err)
	}
	return audit, nil
}

func (s *PostgresStore) UpdateAudit(ctx context.Context, audit *models.Audit) error {
	query := `
		UPDATE compliance_audits
		SET status = $2, resolved_at = $3
		WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, audit.ID, audit.Status, audit.ResolvedAt)
	if err != nil {
		return fmt.Errorf("updating audit: %w", err)
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

func (s *PostgresStore) ListAuditsSince(ctx context.Context, organizationID uuid.UUID, since time.Time) ([]*models.Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM compliance_audits
		WHERE organization_id = $1 AND detected_at >= $2
		ORDER BY detected_at DESC`
	rows, err := s.db.QueryContext(ctx, query, organizationID, since)
	if err != nil {
		return nil, fmt.Errorf("querying audits: %w", err)
	}
	defer rows.Close()

	var audits []*models.Audit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit: %w", err)
		}
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}

func (s *PostgresStore) ListViolationsSince(ctx context.Context, organizationID uuid.UUID, since time.Time) ([]*models.ViolationReport, error) {
	query := `
		SELECT id, organization_id, violation_type, severity, description,
			affected_users_count, reported_to_oversight, resolved, related_audit_id, created_at
		FROM violation_reports
		WHERE organization_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, organizationID, since)
	if err != nil {
		return nil, fmt.Errorf("querying violation reports: %w", err)
	}
	defer rows.Close()

	var violations []*models.ViolationReport
	for rows.Next() {
		var v models.ViolationReport
		err := rows.Scan(&v.ID, &v.OrganizationID, &v.ViolationType, &v.Severity,
			&v.Description, &v.AffectedUsersCount, &v.ReportedToOversight,
			&v.Resolved, &v.RelatedAuditID, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning violation report: %w", err)
		}
		violations = append(violations, &v)
	}
	return violations, rows.Err()
}

func (s *PostgresStore) CountUnresolvedViolations(ctx context.Context, organizationID uuid.UUID, types ...models.ViolationType) (int, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}
	query := `
		SELECT COUNT(*) FROM violation_reports
		WHERE organization_id = $1 AND NOT resolved AND violation_type = ANY($2)`
	var count int
	if err := s.db.QueryRowContext(ctx, query, organizationID, typeNames).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unresolved violations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountAudits(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compliance_audits`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audits: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountAuditsBetween(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM compliance_audits WHERE detected_at >= $1 AND detected_at < $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audits: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountOpenCriticalAudits(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM compliance_audits
		WHERE severity = 'CRITICAL' AND status NOT IN ('RESOLVED', 'IGNORED')`
	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting open critical audits: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountAuditsResolvedBetween(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM compliance_audits WHERE resolved_at >= $1 AND resolved_at < $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting resolved audits: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*models.Audit, error) {
	var audit models.Audit
	var details []byte
	err := row.Scan(&audit.ID, &audit.OrganizationID, &audit.RuleName, &audit.Severity,
		&audit.Description, &details, &audit.Recommendation, &audit.Status,
		&audit.DetectedAt, &audit.ResolvedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &audit.Details); err != nil {
			return nil, fmt.Errorf("decoding audit details: %w", err)
		}
	}
	return &audit, nil
}
