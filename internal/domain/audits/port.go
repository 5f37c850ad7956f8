package audits

import "context"

// Repository port (interface untuk persistence).
// The history log is append-only: no update, no delete. Append must be
// durable before it returns.
type Repository interface {
	Append(ctx context.Context, r *Report) error
	Get(ctx context.Context, tenant string, id ReportID) (*Report, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Report, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedResult, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (Summary, error)
}

// Mailer port (interface untuk SMTP transport). One attempt per call.
type Mailer interface {
	Send(ctx context.Context, job *EmailJob) error
}

// ArtifactStore port — optional durable copy of the formatted report text.
type ArtifactStore interface {
	UploadReport(ctx context.Context, r *Report) (string, error)
}
