package expenses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/platform/httpx"
)

type ExpenseService interface {
	CreateExpense(ctx context.Context, input CreateExpenseInput) (Expense, error)
	ListExpenses(ctx context.Context, filter ListFilter) (ListResponse, error)
}

type Handler struct {
	logger  *slog.Logger
	service ExpenseService
}

func NewHandler(logger *slog.Logger, service ExpenseService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

type createExpenseRequest struct {
	Date        string          `json:"date" validate:"required"`
	Category    string          `json:"category" validate:"max=100"`
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	expense, err := h.service.CreateExpense(r.Context(), CreateExpenseInput{
		Date:        date,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		h.respondError(w, "create expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	var err error
	if filter.Start, err = httpx.QueryDate(r, "startDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.End, err = httpx.QueryDate(r, "endDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter.Category = q.Get("category")
	for name, dest := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			httpx.RespondError(w, fmt.Errorf("%w: %s must be a non-negative integer", httpx.ErrValidation, name))
			return
		}
		*dest = v
	}
	resp, err := h.service.ListExpenses(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list expenses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidExpense):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, accounting.ErrMappingNotFound):
		httpx.ServerError(w, h.logger, "Ledger account mapping missing", err, slog.String("op", op))
	default:
		httpx.ServerError(w, h.logger, "Failed to "+op, err)
	}
}
