package audits

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domai "github.com/bryanwahyu/solidity-audit/internal/domain/ai"
	"github.com/bryanwahyu/solidity-audit/internal/domain/auditerrors"
	domain "github.com/bryanwahyu/solidity-audit/internal/domain/audits"
	"github.com/bryanwahyu/solidity-audit/internal/infra/ai/prompt"
)

//
// ==== fakes ====
//

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// fakeAnalyzer replays scripted completions, or a scripted error.
type fakeAnalyzer struct {
	mu    sync.Mutex
	out   []string
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req domai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.out) == 0 {
		return "General remarks only", nil
	}
	next := f.out[0]
	if len(f.out) > 1 {
		f.out = f.out[1:]
	}
	return next, nil
}

// memRepo is an in-memory append-only Repository.
type memRepo struct {
	mu      sync.Mutex
	reports []*domain.Report
}

func (m *memRepo) Append(ctx context.Context, r *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reports = append(m.reports, &cp)
	return nil
}

func (m *memRepo) Get(ctx context.Context, tenant string, id domain.ReportID) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.TenantID == tenant && r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
}

func (m *memRepo) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Report
	for _, r := range m.reports {
		if r.TenantID == tenant {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	all, _ := m.Latest(ctx, tenant, 0)
	return domain.PaginatedResult{Data: all, Page: page, PageSize: pageSize, Total: int64(len(all))}, nil
}

func (m *memRepo) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.Summary
	for _, r := range m.reports {
		if r.TenantID != tenant {
			continue
		}
		s.TotalAudits++
		if r.Mode == domain.ModeBeginner {
			s.Beginner++
		} else {
			s.Detailed++
		}
	}
	return s, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []*domain.EmailJob
}

func (f *fakeMailer) Send(ctx context.Context, job *domain.EmailJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, job)
	return nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []*auditerrors.AuditError
}

func (m *memJournal) Save(ctx context.Context, e *auditerrors.AuditError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJournal) ListByTenant(ctx context.Context, tenant string, limit int) ([]*auditerrors.AuditError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, nil
}

type memCache struct {
	mu sync.Mutex
	kv map[string]string
}

func (m *memCache) key(hash, mode string) string { return hash + ":" + mode }

func (m *memCache) Get(ctx context.Context, hash, mode string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[m.key(hash, mode)]
	return v, ok
}

func (m *memCache) Set(ctx context.Context, hash, mode, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv == nil {
		m.kv = map[string]string{}
	}
	m.kv[m.key(hash, mode)] = text
	return nil
}

//
// ==== helpers ====
//

const sampleCompletion = `**Security Vulnerabilities**
- reentrancy in withdraw()

**Gas Optimization Opportunities**
- pack storage slots

**Code Quality Improvements**
- add natspec`

func newService(an *fakeAnalyzer) (*Service, *memRepo, *memJournal) {
	repo := &memRepo{}
	journal := &memJournal{}
	svc := &Service{
		Repo:     repo,
		Analyzer: an,
		Prompts:  prompt.NewBuilder(0),
		Errors:   journal,
		Clock:    fixedClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		Model:    "gpt-4",
	}
	return svc, repo, journal
}

func runCmd(code string) RunAuditCommand {
	return RunAuditCommand{
		TenantID: "acme",
		Filename: "token.sol",
		Code:     []byte(code),
	}
}

//
// ==== tests ====
//

func TestRunAuditStoresFormattedReport(t *testing.T) {
	an := &fakeAnalyzer{out: []string{sampleCompletion}}
	svc, repo, _ := newService(an)

	res, err := svc.RunAudit(context.Background(), runCmd("contract Token {}"))
	require.NoError(t, err)

	rep := res.Report
	require.NotNil(t, rep)
	assert.Equal(t, "acme", rep.TenantID)
	assert.Equal(t, "token.sol", rep.ContractName)
	assert.Equal(t, "gpt-4", rep.Model)
	assert.Len(t, rep.Sections, 3)
	assert.Equal(t, domain.SectionSecurity, rep.Sections[0].Title)

	// durable before return
	stored, err := repo.Get(context.Background(), "acme", rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Body, stored.Body)
}

func TestRunAuditEmptyInput(t *testing.T) {
	an := &fakeAnalyzer{}
	svc, repo, journal := newService(an)

	_, err := svc.RunAudit(context.Background(), runCmd("   "))
	require.Error(t, err)

	var serr *domain.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, domain.StageUploaded, serr.Stage)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	assert.Zero(t, an.calls, "analyzer must not run on rejected input")
	assert.Zero(t, repo.count())
	require.Len(t, journal.entries, 1)
	assert.Equal(t, string(domain.StageUploaded), journal.entries[0].Stage)
}

func TestRunAuditAnalyzerFailure(t *testing.T) {
	an := &fakeAnalyzer{err: fmt.Errorf("%w: bad key", domai.ErrConfiguration)}
	svc, repo, journal := newService(an)

	_, err := svc.RunAudit(context.Background(), runCmd("contract A {}"))
	require.Error(t, err)

	var serr *domain.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, domain.StageAnalyzing, serr.Stage)
	assert.ErrorIs(t, err, domai.ErrConfiguration)

	// history stays untouched on failure
	assert.Zero(t, repo.count())
	require.Len(t, journal.entries, 1)
	assert.Equal(t, string(domain.StageAnalyzing), journal.entries[0].Stage)
}

func TestRunAuditEmailFailureStillStored(t *testing.T) {
	an := &fakeAnalyzer{out: []string{sampleCompletion}}
	svc, repo, journal := newService(an)
	svc.Mailer = &fakeMailer{err: errors.New("smtp: connection refused")}

	cmd := runCmd("contract A {}")
	cmd.Email = "dev@example.com"

	res, err := svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err, "delivery failure must not fail the session")

	assert.False(t, res.EmailSent)
	assert.Contains(t, res.EmailError, "connection refused")
	assert.Equal(t, 1, repo.count())
	require.Len(t, journal.entries, 1)
	assert.Equal(t, string(domain.StageNotified), journal.entries[0].Stage)
}

func TestRunAuditEmailSent(t *testing.T) {
	an := &fakeAnalyzer{out: []string{sampleCompletion}}
	svc, _, _ := newService(an)
	mailer := &fakeMailer{}
	svc.Mailer = mailer

	cmd := runCmd("contract A {}")
	cmd.Email = "dev@example.com"
	cmd.Subject = "Weekly audit"

	res, err := svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.EmailSent)

	require.Len(t, mailer.sent, 1)
	job := mailer.sent[0]
	assert.Equal(t, "dev@example.com", job.Recipient)
	assert.Equal(t, "Weekly audit", job.Subject)
	assert.Equal(t, "audit_report.txt", job.AttachmentName)
	assert.Equal(t, res.Report.Body, job.Body)
}

func TestRunAuditDistinctIDsPerSession(t *testing.T) {
	an := &fakeAnalyzer{out: []string{sampleCompletion}}
	svc, repo, _ := newService(an)

	cmd := runCmd("contract A {}")
	first, err := svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err)
	second, err := svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err)

	// same code, same hash, new report row every run
	assert.NotEqual(t, first.Report.ID, second.Report.ID)
	assert.Equal(t, first.Report.CodeHash, second.Report.CodeHash)
	assert.Equal(t, 2, repo.count())
}

func TestRunAuditCacheHitSkipsAnalyzer(t *testing.T) {
	an := &fakeAnalyzer{out: []string{sampleCompletion}}
	svc, repo, _ := newService(an)
	svc.Cache = &memCache{}

	cmd := runCmd("contract A {}")
	first, err := svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)

	assert.Equal(t, 1, an.calls)
	// cached completion still yields a fresh stored report
	assert.Equal(t, 2, repo.count())
	assert.NotEqual(t, first.Report.ID, second.Report.ID)
}

func TestRunAuditConcurrentSessions(t *testing.T) {
	an := &fakeAnalyzer{}
	svc, repo, _ := newService(an)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := runCmd(fmt.Sprintf("contract C%d {}", i))
			_, errs[i] = svc.RunAudit(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, n, repo.count())
}

func TestEmailReport(t *testing.T) {
	an := &fakeAnalyzer{out: []string{sampleCompletion}}
	svc, _, _ := newService(an)
	mailer := &fakeMailer{}
	svc.Mailer = mailer

	res, err := svc.RunAudit(context.Background(), runCmd("contract A {}"))
	require.NoError(t, err)

	err = svc.EmailReport(context.Background(), "acme", res.Report.ID, "ops@example.com", "")
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
}

func TestEmailReportNotFound(t *testing.T) {
	svc, _, _ := newService(&fakeAnalyzer{})

	err := svc.EmailReport(context.Background(), "acme", "missing-id", "ops@example.com", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListErrors(t *testing.T) {
	an := &fakeAnalyzer{err: errors.New("upstream down")}
	svc, _, _ := newService(an)

	_, err := svc.RunAudit(context.Background(), runCmd("contract A {}"))
	require.Error(t, err)

	list, err := svc.ListErrors(context.Background(), "acme", 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, string(domain.StageAnalyzing), list[0].Stage)

	// journal disabled → empty, not an error
	svc.Errors = nil
	list, err = svc.ListErrors(context.Background(), "acme", 20)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSummaryCountsModes(t *testing.T) {
	an := &fakeAnalyzer{}
	svc, _, _ := newService(an)

	_, err := svc.RunAudit(context.Background(), runCmd("contract A {}"))
	require.NoError(t, err)

	cmd := runCmd("contract B {}")
	cmd.Mode = "beginner"
	_, err = svc.RunAudit(context.Background(), cmd)
	require.NoError(t, err)

	sum, err := svc.Summary(context.Background(), "acme", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalAudits)
	assert.Equal(t, 1, sum.Detailed)
	assert.Equal(t, 1, sum.Beginner)
}
