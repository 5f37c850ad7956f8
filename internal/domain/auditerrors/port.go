package auditerrors

import "context"

// Repository defines persistence for audit session failures
type Repository interface {
	Save(ctx context.Context, e *AuditError) error
	ListByTenant(ctx context.Context, tenant string, limit int) ([]*AuditError, error)
}
