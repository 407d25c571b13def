package reportshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/platform/httpx"
	"github.com/pharmadist/pharmadist-erp/internal/reports"
	"github.com/pharmadist/pharmadist-erp/internal/reports/export"
)

const requestTimeout = 20 * time.Second

// ReportService defines the report contract used by the handler.
type ReportService interface {
	TrialBalance(ctx context.Context, filter reports.TrialBalanceFilter) (reports.TrialBalance, error)
	ProfitAndLoss(ctx context.Context, window reports.DateRange) (reports.ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, asOf *time.Time) (reports.BalanceSheet, error)
	Aging(ctx context.Context, asOf *time.Time) (reports.AgingReport, error)
	ChartOfAccounts(ctx context.Context, accountType *accounting.AccountType) (reports.ChartOfAccounts, error)
	JournalEntries(ctx context.Context, filter reports.LedgerFilter) (reports.JournalListing, error)
	GeneralLedger(ctx context.Context, filter reports.LedgerFilter) (reports.GeneralLedger, error)
	AccountSummary(ctx context.Context, window reports.DateRange) (reports.AccountSummary, error)
	CustomerDistribution(ctx context.Context, window reports.DateRange) (reports.CustomerDistribution, error)
}

// DocumentExporter renders flattened reports.
type DocumentExporter interface {
	PDF(ctx context.Context, doc export.Document) ([]byte, error)
	Excel(doc export.Document) ([]byte, error)
	Filename(doc export.Document, ext string) string
}

// Handler serves /api/reports.
type Handler struct {
	logger      *slog.Logger
	service     ReportService
	exporter    DocumentExporter
	exportLimit int
}

// NewHandler constructs the reports HTTP handler. exportLimit is the number of
// export requests allowed per client per minute.
func NewHandler(logger *slog.Logger, service ReportService, exporter DocumentExporter, exportLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if exportLimit <= 0 {
		exportLimit = 10
	}
	return &Handler{logger: logger, service: service, exporter: exporter, exportLimit: exportLimit}
}

var reportLabels = map[string]string{
	reports.ReportTrialBalance:         "trial balance",
	reports.ReportProfitLoss:           "profit and loss",
	reports.ReportBalanceSheet:         "balance sheet",
	reports.ReportAging:                "aging analysis",
	reports.ReportChartOfAccounts:      "chart of accounts",
	reports.ReportJournalEntries:       "journal entries",
	reports.ReportGeneralLedger:        "general ledger",
	reports.ReportAccountSummary:       "account summary",
	reports.ReportCustomerDistribution: "customer distribution",
}

func dateRange(r *http.Request) (reports.DateRange, error) {
	start, err := httpx.QueryDate(r, "startDate")
	if err != nil {
		return reports.DateRange{}, err
	}
	end, err := httpx.QueryDate(r, "endDate")
	if err != nil {
		return reports.DateRange{}, err
	}
	window := reports.DateRange{Start: start, End: end}
	return window, window.Validate()
}

func ledgerFilter(r *http.Request) (reports.LedgerFilter, error) {
	window, err := dateRange(r)
	if err != nil {
		return reports.LedgerFilter{}, err
	}
	id, err := httpx.QueryInt64(r, "accountId")
	if err != nil {
		return reports.LedgerFilter{}, err
	}
	return reports.LedgerFilter{DateRange: window, AccountID: id}, nil
}

func (h *Handler) trialBalance(ctx context.Context, r *http.Request) (reports.TrialBalance, error) {
	window, err := dateRange(r)
	if err != nil {
		return reports.TrialBalance{}, err
	}
	return h.service.TrialBalance(ctx, reports.TrialBalanceFilter{DateRange: window, AccountFilter: r.URL.Query().Get("accountFilter")})
}

func (h *Handler) profitAndLoss(ctx context.Context, r *http.Request) (reports.ProfitAndLoss, error) {
	window, err := dateRange(r)
	if err != nil {
		return reports.ProfitAndLoss{}, err
	}
	return h.service.ProfitAndLoss(ctx, window)
}

func (h *Handler) balanceSheet(ctx context.Context, r *http.Request) (reports.BalanceSheet, error) {
	asOf, err := httpx.QueryDate(r, "asOfDate")
	if err != nil {
		return reports.BalanceSheet{}, err
	}
	return h.service.BalanceSheet(ctx, asOf)
}

func (h *Handler) aging(ctx context.Context, r *http.Request) (reports.AgingReport, error) {
	asOf, err := httpx.QueryDate(r, "asOfDate")
	if err != nil {
		return reports.AgingReport{}, err
	}
	return h.service.Aging(ctx, asOf)
}

func (h *Handler) generalLedger(ctx context.Context, r *http.Request) (reports.GeneralLedger, error) {
	filter, err := ledgerFilter(r)
	if err != nil {
		return reports.GeneralLedger{}, err
	}
	return h.service.GeneralLedger(ctx, filter)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportTrialBalance, h.trialBalance)
}

func (h *Handler) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportProfitLoss, h.profitAndLoss)
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportBalanceSheet, h.balanceSheet)
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportAging, h.aging)
}

func (h *Handler) handleGeneralLedger(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportGeneralLedger, h.generalLedger)
}

func (h *Handler) handleChartOfAccounts(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportChartOfAccounts, func(ctx context.Context, r *http.Request) (reports.ChartOfAccounts, error) {
		var filter *accounting.AccountType
		if raw := r.URL.Query().Get("type"); raw != "" {
			t, err := accounting.ParseAccountType(raw)
			if err != nil {
				return reports.ChartOfAccounts{}, fmt.Errorf("%w: type %q", reports.ErrInvalidFilter, raw)
			}
			filter = &t
		}
		return h.service.ChartOfAccounts(ctx, filter)
	})
}

func (h *Handler) handleJournalEntries(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportJournalEntries, func(ctx context.Context, r *http.Request) (reports.JournalListing, error) {
		filter, err := ledgerFilter(r)
		if err != nil {
			return reports.JournalListing{}, err
		}
		return h.service.JournalEntries(ctx, filter)
	})
}

func (h *Handler) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportAccountSummary, func(ctx context.Context, r *http.Request) (reports.AccountSummary, error) {
		window, err := dateRange(r)
		if err != nil {
			return reports.AccountSummary{}, err
		}
		return h.service.AccountSummary(ctx, window)
	})
}

func (h *Handler) handleCustomerDistribution(w http.ResponseWriter, r *http.Request) {
	serveJSON(h, w, r, reports.ReportCustomerDistribution, func(ctx context.Context, r *http.Request) (reports.CustomerDistribution, error) {
		window, err := dateRange(r)
		if err != nil {
			return reports.CustomerDistribution{}, err
		}
		return h.service.CustomerDistribution(ctx, window)
	})
}

func serveJSON[T any](h *Handler, w http.ResponseWriter, r *http.Request, report string, load func(context.Context, *http.Request) (T, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	result, err := load(ctx, r)
	if err != nil {
		h.fail(w, r, report, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// document loads a report by route name and flattens it for export.
func (h *Handler) document(ctx context.Context, r *http.Request, report string) (export.Document, error) {
	switch report {
	case reports.ReportTrialBalance:
		tb, err := h.trialBalance(ctx, r)
		return export.TrialBalanceDocument(tb), err
	case reports.ReportProfitLoss:
		pl, err := h.profitAndLoss(ctx, r)
		return export.ProfitLossDocument(pl), err
	case reports.ReportBalanceSheet:
		bs, err := h.balanceSheet(ctx, r)
		return export.BalanceSheetDocument(bs), err
	case reports.ReportAging:
		ar, err := h.aging(ctx, r)
		return export.AgingDocument(ar), err
	case reports.ReportGeneralLedger:
		gl, err := h.generalLedger(ctx, r)
		return export.GeneralLedgerDocument(gl), err
	default:
		return export.Document{}, fmt.Errorf("%w: %s", reports.ErrUnknownReport, report)
	}
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	report := chi.URLParam(r, "report")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	doc, err := h.document(ctx, r, report)
	if err != nil {
		h.fail(w, r, report, err)
		return
	}
	pdf, err := h.exporter.PDF(ctx, doc)
	if err != nil {
		if errors.Is(err, export.ErrPDFUnavailable) {
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "PDF rendering is not configured")
			return
		}
		h.logger.Error("render report pdf", slog.String("report", report), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "Failed to render PDF")
		return
	}
	writeAttachment(w, "application/pdf", h.exporter.Filename(doc, "pdf"), pdf)
}

func (h *Handler) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	report := chi.URLParam(r, "report")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	doc, err := h.document(ctx, r, report)
	if err != nil {
		h.fail(w, r, report, err)
		return
	}
	xlsx, err := h.exporter.Excel(doc)
	if err != nil {
		httpx.ServerError(w, h.logger, "Failed to generate "+label(report), err, slog.String("report", report))
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", h.exporter.Filename(doc, "xlsx"), xlsx)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// fail answers 400 for caller input, 404 for unknown exports and 500 otherwise.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, report string, err error) {
	switch {
	case errors.Is(err, reports.ErrUnknownReport):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	case reports.IsFilterError(err):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		httpx.ServerError(w, h.logger, "Failed to generate "+label(report), err,
			slog.String("report", report), slog.String("query", r.URL.RawQuery))
	}
}

func label(report string) string {
	if l, ok := reportLabels[report]; ok {
		return l
	}
	return report
}
