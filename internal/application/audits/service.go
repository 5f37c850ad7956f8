package audits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domai "github.com/bryanwahyu/solidity-audit/internal/domain/ai"
	"github.com/bryanwahyu/solidity-audit/internal/domain/auditerrors"
	domain "github.com/bryanwahyu/solidity-audit/internal/domain/audits"
)

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// PromptBuilder composes the outbound completion request for one session.
type PromptBuilder interface {
	Build(src *domain.ContractSource, mode domain.Mode) (domai.Request, error)
}

// CompletionCache is the optional completion memo keyed by code hash + mode.
type CompletionCache interface {
	Get(ctx context.Context, codeHash, mode string) (string, bool)
	Set(ctx context.Context, codeHash, mode, text string) error
}

// Service implements the audit session use-cases. One RunAudit call is one
// session: load → build → analyze → format → store → (optional) notify,
// strictly sequential. Sessions share nothing but Repo and Cache, so the
// service is safe for concurrent use.
type Service struct {
	Repo      domain.Repository
	Analyzer  domai.Analyzer
	Prompts   PromptBuilder
	Mailer    domain.Mailer          // nil = email export disabled
	Artifacts domain.ArtifactStore   // nil = no artifact copy
	Errors    auditerrors.Repository // nil = no failure journal
	Cache     CompletionCache        // nil = always call the model
	Clock     Clock
	Log       *zap.Logger

	Model            string // recorded on reports for provenance
	MaxContractBytes int64
}

//
// ==== USE CASES ====
//

// Command untuk satu sesi audit
type RunAuditCommand struct {
	TenantID string
	Filename string
	Code     []byte
	Mode     string
	Email    string // optional: send the report here after storing
	Subject  string
}

type RunAuditResult struct {
	Report     *domain.Report `json:"report"`
	CacheHit   bool           `json:"cache_hit,omitempty"`
	EmailSent  bool           `json:"email_sent,omitempty"`
	EmailError string         `json:"email_error,omitempty"`
}

// RunAudit drives one full session. Any stage failure returns a
// *domain.SessionError and halts further stages; a delivery failure after a
// successful store is reported in the result instead, because the report is
// already durable and queryable.
func (s *Service) RunAudit(ctx context.Context, cmd RunAuditCommand) (RunAuditResult, error) {
	start := s.Clock.Now()

	mode, err := domain.ParseMode(cmd.Mode)
	if err != nil {
		return RunAuditResult{}, s.fail(cmd.TenantID, "", domain.StageUploaded, err)
	}
	src, err := domain.LoadSource(cmd.Filename, cmd.Code, s.MaxContractBytes)
	if err != nil {
		return RunAuditResult{}, s.fail(cmd.TenantID, "", domain.StageUploaded, err)
	}
	req, err := s.Prompts.Build(src, mode)
	if err != nil {
		return RunAuditResult{}, s.fail(cmd.TenantID, "", domain.StageUploaded, err)
	}

	raw, cacheHit := s.lookupCompletion(ctx, src.Hash, string(mode))
	if !cacheHit {
		raw, err = s.Analyzer.Analyze(ctx, req)
		if err != nil {
			return RunAuditResult{}, s.fail(cmd.TenantID, "", domain.StageAnalyzing, err)
		}
		s.storeCompletion(ctx, src.Hash, string(mode), raw)
	}

	id := domain.ReportID(fmt.Sprintf("%s-%s", uuid.New().String(), src.Hash))
	rep, err := domain.FormatReport(raw, src, mode, id, cmd.TenantID, s.Clock.Now())
	if err != nil {
		return RunAuditResult{}, s.fail(cmd.TenantID, string(id), domain.StageFormatted, err)
	}
	rep.Model = s.Model
	rep.DurationMS = s.Clock.Now().Sub(start).Milliseconds()

	// Artifact copy is a courtesy mirror; the DB row below is the durable record.
	if s.Artifacts != nil {
		if url, aerr := s.Artifacts.UploadReport(ctx, rep); aerr != nil {
			s.log().Warn("report artifact upload failed",
				zap.String("report_id", string(rep.ID)), zap.Error(aerr))
		} else {
			rep.ArtifactURL = url
		}
	}

	if err := s.Repo.Append(ctx, rep); err != nil {
		return RunAuditResult{}, s.fail(cmd.TenantID, string(id), domain.StageStored, err)
	}

	res := RunAuditResult{Report: rep, CacheHit: cacheHit}
	if cmd.Email != "" {
		if err := s.sendReport(ctx, rep, cmd.Email, cmd.Subject); err != nil {
			res.EmailError = err.Error()
			s.journal(cmd.TenantID, string(rep.ID), domain.StageNotified, err)
		} else {
			res.EmailSent = true
		}
	}
	return res, nil
}

// EmailReport sends an already-stored report. One attempt, no retry.
func (s *Service) EmailReport(ctx context.Context, tenant string, id domain.ReportID, recipient, subject string) error {
	rep, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if err := s.sendReport(ctx, rep, recipient, subject); err != nil {
		s.journal(tenant, string(id), domain.StageNotified, err)
		return err
	}
	return nil
}

// Latest ambil N report terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Report, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// Get ambil 1 report by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.ReportID) (*domain.Report, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// Paginate history untuk UI list view
func (s *Service) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// Summary rekap audit N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	return s.Repo.Summary(ctx, tenant, sinceDays)
}

// ListErrors ambil jurnal failure terakhir. Journal disabled → empty list.
func (s *Service) ListErrors(ctx context.Context, tenant string, limit int) ([]*auditerrors.AuditError, error) {
	if s.Errors == nil {
		return []*auditerrors.AuditError{}, nil
	}
	return s.Errors.ListByTenant(ctx, tenant, limit)
}

//
// ==== helpers ====
//

func (s *Service) sendReport(ctx context.Context, rep *domain.Report, recipient, subject string) error {
	if s.Mailer == nil {
		return fmt.Errorf("%w: smtp transport not configured", domain.ErrDelivery)
	}
	return s.Mailer.Send(ctx, &domain.EmailJob{
		Recipient:      recipient,
		Subject:        subject,
		Body:           rep.Body,
		AttachmentName: "audit_report.txt",
	})
}

func (s *Service) lookupCompletion(ctx context.Context, hash, mode string) (string, bool) {
	if s.Cache == nil {
		return "", false
	}
	return s.Cache.Get(ctx, hash, mode)
}

func (s *Service) storeCompletion(ctx context.Context, hash, mode, raw string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, hash, mode, raw); err != nil {
		s.log().Warn("completion cache write failed", zap.Error(err))
	}
}

// fail journals the terminal state and wraps err with the failed stage.
func (s *Service) fail(tenant, reportID string, stage domain.Stage, err error) error {
	s.journal(tenant, reportID, stage, err)
	return domain.FailedAt(stage, err)
}

// journal is best-effort: uses a detached context so an aborted session
// still leaves a trace, and never surfaces its own error.
func (s *Service) journal(tenant, reportID string, stage domain.Stage, cause error) {
	if s.Errors == nil {
		return
	}
	e := &auditerrors.AuditError{
		TenantID:  tenant,
		ReportID:  reportID,
		Stage:     string(stage),
		Message:   cause.Error(),
		CreatedAt: s.Clock.Now(),
	}
	if jerr := s.Errors.Save(context.Background(), e); jerr != nil {
		s.log().Warn("audit error journal write failed", zap.Error(jerr))
	}
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
