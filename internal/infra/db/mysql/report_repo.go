package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/solidity-audit/internal/domain/audits"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, tenant_id, contract_name, code_hash, mode, title, model,
       body, sections_json, artifact_url, duration_ms, created_at`

// Append inserts one report row. The log is append-only: a duplicate id is
// an error, never an upsert.
func (r *ReportRepository) Append(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO audit_reports
(id, tenant_id, contract_name, code_hash, mode, title, model,
 body, sections_json, artifact_url, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);
`
	sections, err := json.Marshal(rep.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	created := rep.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		rep.ID, stringOrDash(rep.TenantID), stringOrDash(rep.ContractName), rep.CodeHash,
		rep.Mode, rep.Title, rep.Model,
		rep.Body, string(sections), rep.ArtifactURL, rep.DurationMS, created,
	)
	return err
}

// Get by ID + Tenant
func (r *ReportRepository) Get(ctx context.Context, tenant string, id domain.ReportID) (*domain.Report, error) {
	q := `
SELECT ` + reportColumns + `
FROM audit_reports
WHERE tenant_id=? AND id=? LIMIT 1;
`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return rep, err
}

// Latest reports per tenant, newest first
func (r *ReportRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
SELECT ` + reportColumns + `
FROM audit_reports
WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

// Paginate with offset + limit (classic pagination)
func (r *ReportRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := `
SELECT ` + reportColumns + `
FROM audit_reports
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	reports, err := collectReports(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_reports WHERE tenant_id = ?", tenant,
	).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       reports,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Summary counts audit reports since N days
func (r *ReportRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total_audits,
       COALESCE(SUM(mode='detailed'),0) AS detailed,
       COALESCE(SUM(mode='beginner'),0) AS beginner
FROM audit_reports
WHERE tenant_id=? AND created_at >= ?;
`
	var s domain.Summary
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(&s.TotalAudits, &s.Detailed, &s.Beginner); err != nil {
		return domain.Summary{}, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var rep domain.Report
	var sections string
	if err := row.Scan(
		&rep.ID, &rep.TenantID, &rep.ContractName, &rep.CodeHash, &rep.Mode, &rep.Title, &rep.Model,
		&rep.Body, &sections, &rep.ArtifactURL, &rep.DurationMS, &rep.CreatedAt,
	); err != nil {
		return nil, err
	}
	if sections != "" {
		if err := json.Unmarshal([]byte(sections), &rep.Sections); err != nil {
			return nil, fmt.Errorf("unmarshal sections: %w", err)
		}
	}
	return &rep, nil
}

func collectReports(rows *sql.Rows) ([]*domain.Report, error) {
	var out []*domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
