package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/customers"
	"github.com/pharmadist/pharmadist-erp/internal/expenses"
	"github.com/pharmadist/pharmadist-erp/internal/observability"
	"github.com/pharmadist/pharmadist-erp/internal/platform/httpx"
	reportshttp "github.com/pharmadist/pharmadist-erp/internal/reports/http"
	"github.com/pharmadist/pharmadist-erp/internal/sales"
	"github.com/pharmadist/pharmadist-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil handlers
// are not mounted.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	LedgerHandler    *accounting.Handler
	ReportsHandler   *reportshttp.Handler
	SalesHandler     *sales.Handler
	ExpensesHandler  *expenses.Handler
	CustomersHandler *customers.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if params.LedgerHandler != nil {
			api.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			api.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			api.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ExpensesHandler != nil {
			api.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.CustomersHandler != nil {
			api.Route("/customers", params.CustomersHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
