package audits

import (
	"fmt"
	"strings"
	"time"
)

// ID tipe untuk Report
type ReportID string

// Mode enum — gaya output audit
type Mode string

const (
	ModeDetailed Mode = "detailed"
	ModeBeginner Mode = "beginner"
)

// ParseMode validates a user-supplied mode string. Empty defaults to
// detailed; matching is case-insensitive, same as the request validator.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "":
		return ModeDetailed, nil
	case ModeDetailed, ModeBeginner:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode: %q (allowed: detailed, beginner)", s)
	}
}

// Section is one labeled block of the formatted report.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Aggregate Root: Report
// Immutable after creation; owned by the history store once appended.
type Report struct {
	ID           ReportID  `json:"id"`
	TenantID     string    `json:"tenant_id"`
	ContractName string    `json:"contract_name"`
	CodeHash     string    `json:"code_hash"`
	Mode         Mode      `json:"mode"`
	Title        string    `json:"title"`
	Model        string    `json:"model,omitempty"`
	Sections     []Section `json:"sections"`
	Body         string    `json:"body"`
	ArtifactURL  string    `json:"artifact_url,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// EmailJob is a single delivery attempt of a report body. Transient — never persisted.
type EmailJob struct {
	Recipient      string
	Subject        string
	Body           string
	AttachmentName string
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Report `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

// Summary rekap audit per mode
type Summary struct {
	TotalAudits int `json:"total_audits"`
	Detailed    int `json:"detailed"`
	Beginner    int `json:"beginner"`
}
