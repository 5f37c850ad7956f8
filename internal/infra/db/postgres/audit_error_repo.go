package postgres

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

func (r *AuditErrorRepository) Save(ctx context.Context, e *domain.AuditError) error {
	const q = `
INSERT INTO audit_errors (tenant_id, report_id, stage, message, created_at)
VALUES ($1,$2,$3,$4,$5);
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, e.TenantID, e.ReportID, e.Stage, e.Message, created)
	return err
}

func (r *AuditErrorRepository) ListByTenant(ctx context.Context, tenant string, limit int) ([]*domain.AuditError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, report_id, stage, message, created_at
FROM audit_errors
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2;
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
