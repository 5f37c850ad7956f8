package auditerrors

import "time"

// AuditError represents a persisted session-failure entry. Best-effort
// journal; losing a row never fails the session itself.
type AuditError struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ReportID  string    `json:"report_id,omitempty"`
	Stage     string    `json:"stage"` // uploaded | analyzing | formatted | stored | notified
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
