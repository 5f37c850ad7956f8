package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	appaudits "github.com/bryanwahyu/solidity-audit/internal/application/audits"
	domai "github.com/bryanwahyu/solidity-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/solidity-audit/internal/domain/audits"
	"github.com/bryanwahyu/solidity-audit/internal/middleware"
)

// errBadRequest marks handler-level validation failures for wrap().
var errBadRequest = errors.New("bad request")

type Router struct {
	svc *appaudits.Service
}

func NewRouter(svc *appaudits.Service) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/audits", r.wrap(r.handleRunAudit))
		rt.Get("/audits", r.wrap(r.handleList))
		rt.Get("/audits/latest", r.wrap(r.handleLatest))
		rt.Get("/audits/{id}", r.wrap(r.handleGet))
		rt.Post("/audits/{id}/email", r.wrap(r.handleEmail))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Get("/errors", r.wrap(r.handleErrors))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			writeError(w, err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrEmptyInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnsupportedFile):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, domain.ErrPayloadTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, domai.ErrQuotaExceeded):
		http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
	case errors.Is(err, domai.ErrConfiguration),
		errors.Is(err, domai.ErrAnalysisFailed),
		errors.Is(err, domain.ErrFormatting),
		errors.Is(err, domain.ErrDelivery):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// tenantParam resolves the URL tenant and, when auth is active, rejects a
// mismatch with the authenticated tenant.
func tenantParam(req *http.Request) (string, error) {
	tenant := chi.URLParam(req, "tenant")
	if err := middleware.ValidateTenantID(tenant); err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if auth := middleware.GetTenantFromContext(req.Context()); auth != "" && auth != tenant {
		return "", fmt.Errorf("%w: tenant mismatch", errBadRequest)
	}
	return tenant, nil
}

// POST /v1/{tenant}/audits
// Multipart: file field "contract" + form fields mode, email, subject.
// JSON: {"filename": "...", "code": "...", "mode": "...", "email": "...", "subject": "..."}
func (r *Router) handleRunAudit(w http.ResponseWriter, req *http.Request) error {
	tenant, err := tenantParam(req)
	if err != nil {
		return err
	}

	cmd, err := decodeAuditRequest(req)
	if err != nil {
		return err
	}
	cmd.TenantID = tenant

	middleware.IncrementAudits()
	middleware.IncrementAuditsRunning()
	defer middleware.DecrementAuditsRunning()

	res, err := r.svc.RunAudit(req.Context(), cmd)
	if err != nil {
		middleware.IncrementAuditsFailed()
		return err
	}
	if res.EmailSent {
		middleware.IncrementEmailsSent()
	} else if res.EmailError != "" {
		middleware.IncrementEmailsFailed()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

func decodeAuditRequest(req *http.Request) (appaudits.RunAuditCommand, error) {
	var cmd appaudits.RunAuditCommand

	ct := req.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := req.ParseMultipartForm(8 << 20); err != nil {
			return cmd, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		file, hdr, err := req.FormFile("contract")
		if err != nil {
			return cmd, fmt.Errorf("%w: contract file is required", errBadRequest)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return cmd, fmt.Errorf("%w: reading contract file: %v", errBadRequest, err)
		}
		cmd.Filename = hdr.Filename
		cmd.Code = data
		cmd.Mode = req.FormValue("mode")
		cmd.Email = req.FormValue("email")
		cmd.Subject = req.FormValue("subject")
	} else {
		var body struct {
			Filename string `json:"filename"`
			Code     string `json:"code"`
			Mode     string `json:"mode"`
			Email    string `json:"email"`
			Subject  string `json:"subject"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return cmd, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		cmd.Filename = body.Filename
		cmd.Code = []byte(body.Code)
		cmd.Mode = body.Mode
		cmd.Email = body.Email
		cmd.Subject = body.Subject
	}

	if err := middleware.ValidateMode(cmd.Mode); err != nil {
		return cmd, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateFilename(cmd.Filename); err != nil {
		return cmd, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if cmd.Email != "" {
		if err := middleware.ValidateEmail(cmd.Email); err != nil {
			return cmd, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	cmd.Subject = middleware.SanitizeString(cmd.Subject)
	return cmd, nil
}

// GET /v1/{tenant}/audits?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	tenant, err := tenantParam(req)
	if err != nil {
		return err
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.Paginate(req.Context(), tenant, page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/audits/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant, err := tenantParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/audits/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant, err := tenantParam(req)
	if err != nil {
		return err
	}
	id := chi.URLParam(req, "id")

	rep, err := r.svc.Get(req.Context(), tenant, domain.ReportID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rep)
}

// POST /v1/{tenant}/audits/{id}/email
// Body: {"recipient": "...", "subject": "..."}
func (r *Router) handleEmail(w http.ResponseWriter, req *http.Request) error {
	tenant, err := tenantParam(req)
	if err != nil {
		return err
	}
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateReportID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	var body struct {
		Recipient string `json:"recipient"`
		Subject   string `json:"subject"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateEmail(body.Recipient); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	if err := r.svc.EmailReport(req.Context(), tenant, domain.ReportID(id), body.Recipient, middleware.SanitizeString(body.Subject)); err != nil {
		middleware.IncrementEmailsFailed()
		return err
	}
	middleware.IncrementEmailsSent()

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"status":    "sent",
		"report_id": id,
		"recipient": body.Recipient,
	})
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant, err := tenantParam(req)
	if err != nil {
		return err
	}
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.svc.Summary(req.Context(), tenant, middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}

// GET /v1/{tenant}/errors?limit=20 — session-failure journal, newest first.
func (r *Router) handleErrors(w http.ResponseWriter, req *http.Request) error {
	tenant, err := tenantParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.ListErrors(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}
