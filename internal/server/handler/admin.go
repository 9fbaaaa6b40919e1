package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

// ImportRunner runs one import.
type ImportRunner interface {
	Run(ctx context.Context) (domain.ImportReport, error)
}

// ReportLister returns the latest import reports, newest first.
type ReportLister interface {
	Recent(ctx context.Context, count int) ([]domain.ImportReport, error)
}

// MarketCatalog is the full stored catalogue, inactive markets included.
type MarketCatalog interface {
	List(ctx context.Context, q domain.MarketQuery) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// AuditLister reads the audit log, newest first.
type AuditLister interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AdminHandler exposes the operator endpoints. importer may be nil when no
// import source is configured.
type AdminHandler struct {
	importer ImportRunner
	reports  ReportLister
	catalog  MarketCatalog
	audit    AuditLister
	logger   *slog.Logger
}

func NewAdminHandler(importer ImportRunner, reports ReportLister, catalog MarketCatalog, audit AuditLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		importer: importer,
		reports:  reports,
		catalog:  catalog,
		audit:    audit,
		logger:   logger,
	}
}

// TriggerImport runs an import and returns its report. The run is detached
// from the request so a disconnecting client does not abort it halfway.
// POST /api/admin/import
func (h *AdminHandler) TriggerImport(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "importer not configured")
		return
	}
	report, err := h.importer.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "an import is already running")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: import run", slog.String("error", err.Error()))
		if report.RunID == "" {
			writeServiceError(w, err, "import failed")
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListImports returns recent import reports.
// GET /api/admin/imports?limit=20
func (h *AdminHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	count := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		count = min(n, 200)
	}
	reports, err := h.reports.Recent(r.Context(), count)
	if err != nil {
		writeServiceError(w, err, "failed to read import reports")
		return
	}
	if reports == nil {
		reports = []domain.ImportReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

type catalogParams struct {
	State    string `schema:"state"`
	District string `schema:"district"`
	Day      string `schema:"day"`
	Status   string `schema:"status"`
	Limit    int    `schema:"limit,default:50"`
	Offset   int    `schema:"offset"`
}

// ListMarkets pages through the stored catalogue.
// GET /api/admin/markets?state=&district=&day=&status=&limit=&offset=
func (h *AdminHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	var p catalogParams
	if err := decodeQuery(&p, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := domain.MarketQuery{
		State:    strings.TrimSpace(p.State),
		District: strings.TrimSpace(p.District),
		ListOpts: domain.ListOpts{Limit: min(max(p.Limit, 1), maxLimit), Offset: max(p.Offset, 0)},
	}
	switch strings.ToLower(p.Status) {
	case "":
	case "active":
		q.Status = domain.MarketStatusActive
	case "inactive":
		q.Status = domain.MarketStatusInactive
	default:
		writeError(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}
	if p.Day != "" {
		day, err := domain.ParseWeekday(p.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Day = &day
	}

	markets, err := h.catalog.List(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list catalogue", slog.String("error", err.Error()))
		writeServiceError(w, err, "failed to list markets")
		return
	}
	total, err := h.catalog.Count(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to count markets")
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"stored":  total,
		"limit":   q.Limit,
		"offset":  q.Offset,
	})
}

type auditView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListAudit returns audit log entries, optionally since an RFC 3339 instant.
// GET /api/admin/audit?limit=&offset=&since=
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Limit  int    `schema:"limit,default:50"`
		Offset int    `schema:"offset"`
		Since  string `schema:"since"`
	}
	if err := decodeQuery(&p, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := domain.ListOpts{Limit: min(max(p.Limit, 1), maxLimit), Offset: max(p.Offset, 0)}
	since, err := instant(p.Since)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !since.IsZero() {
		opts.Since = &since
	}

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit", slog.String("error", err.Error()))
		writeServiceError(w, err, "failed to read audit log")
		return
	}
	views := make([]auditView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditView{ID: e.ID, Event: e.Event, Detail: e.Detail, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views})
}
