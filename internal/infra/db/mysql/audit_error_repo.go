package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/solidity-audit/internal/domain/auditerrors"
)

type AuditErrorRepository struct {
	db *sql.DB
}

func NewAuditErrorRepository(db *sql.DB) *AuditErrorRepository {
	return &AuditErrorRepository{db: db}
}

// Save inserts one failure entry
func (r *AuditErrorRepository) Save(ctx context.Context, e *domain.AuditError) error {
	const q = `
INSERT INTO audit_errors (tenant_id, report_id, stage, message, created_at)
VALUES (?,?,?,?,?);
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.TenantID), e.ReportID, stringOrDash(e.Stage), e.Message, created,
	)
	return err
}

// ListByTenant returns the latest failure entries for a tenant
func (r *AuditErrorRepository) ListByTenant(ctx context.Context, tenant string, limit int) ([]*domain.AuditError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, report_id, stage, message, created_at
FROM audit_errors
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditError
	for rows.Next() {
		var e domain.AuditError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ReportID, &e.Stage, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
