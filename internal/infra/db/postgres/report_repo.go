package postgres

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

// ReportRepository is the postgres variant of the history store. Same
// contract as the mysql adapter, positional placeholders aside.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, tenant_id, contract_name, code_hash, mode, title, model,
       body, sections_json, artifact_url, duration_ms, created_at`

func (r *ReportRepository) Append(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO audit_reports
(id, tenant_id, contract_name, code_hash, mode, title, model,
 body, sections_json, artifact_url, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);
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
		rep.ID, rep.TenantID, rep.ContractName, rep.CodeHash,
		rep.Mode, rep.Title, rep.Model,
		rep.Body, string(sections), rep.ArtifactURL, rep.DurationMS, created,
	)
	return err
}

func (r *ReportRepository) Get(ctx context.Context, tenant string, id domain.ReportID) (*domain.Report, error) {
	q := `
SELECT ` + reportColumns + `
FROM audit_reports
WHERE tenant_id=$1 AND id=$2 LIMIT 1;
`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return rep, err
}

func (r *ReportRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
SELECT ` + reportColumns + `
FROM audit_reports
WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

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
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
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
		"SELECT COUNT(*) FROM audit_reports WHERE tenant_id = $1", tenant,
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

func (r *ReportRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total_audits,
       COALESCE(SUM(CASE WHEN mode='detailed' THEN 1 ELSE 0 END),0) AS detailed,
       COALESCE(SUM(CASE WHEN mode='beginner' THEN 1 ELSE 0 END),0) AS beginner
FROM audit_reports
WHERE tenant_id=$1 AND created_at >= $2;
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
