package reportshttp

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/pharmadist/pharmadist-erp/internal/platform/httpx"
)

// MountRoutes registers report endpoints. Exports sit behind a stricter
// per-client limiter.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.exportLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(httpx.TooManyRequests),
	)

	r.Get("/trial-balance", h.handleTrialBalance)
	r.Get("/profit-loss", h.handleProfitLoss)
	r.Get("/balance-sheet", h.handleBalanceSheet)
	r.Get("/aging-analysis", h.handleAging)
	r.Get("/chart-of-accounts", h.handleChartOfAccounts)
	r.Get("/journal-entries", h.handleJournalEntries)
	r.Get("/general-ledger", h.handleGeneralLedger)
	r.Get("/account-summary", h.handleAccountSummary)
	r.Get("/customer-distribution", h.handleCustomerDistribution)

	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/{report}/export/pdf", h.handleExportPDF)
		gr.Get("/{report}/export/excel", h.handleExportExcel)
	})
}
