package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/platform/httpx"
)

// SalesService is the contract the HTTP layer depends on.
type SalesService interface {
	CreateSale(ctx context.Context, input CreateSaleInput) (Sale, error)
	MarkPaid(ctx context.Context, id int64, paidAt *time.Time) (Sale, error)
	GetSale(ctx context.Context, id int64) (Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// Handler serves sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service SalesService
}

func NewHandler(logger *slog.Logger, service SalesService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/pay", h.handlePay)
}

type itemRequest struct {
	ProductName string          `json:"productName" validate:"required,max=200"`
	BatchNumber string          `json:"batchNumber" validate:"max=50"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	DiscountPct decimal.Decimal `json:"discountPct"`
	TaxPct      decimal.Decimal `json:"taxPct"`
}

type createSaleRequest struct {
	InvoiceNumber string        `json:"invoiceNumber" validate:"max=50"`
	CustomerID    int64         `json:"customerId" validate:"required,gt=0"`
	Date          string        `json:"date" validate:"required"`
	PaymentMethod string        `json:"paymentMethod" validate:"omitempty,oneof=credit cash"`
	Items         []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type payRequest struct {
	Date string `json:"date"`
}

type listResponse struct {
	Sales  []Sale `json:"sales"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateSaleInput{
		InvoiceNumber: req.InvoiceNumber,
		CustomerID:    req.CustomerID,
		Date:          date,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		Items:         make([]ItemInput, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInput{
			ProductName: it.ProductName,
			BatchNumber: it.BatchNumber,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			DiscountPct: it.DiscountPct,
			TaxPct:      it.TaxPct,
		})
	}
	sale, err := h.service.CreateSale(r.Context(), input)
	if err != nil {
		h.respond(w, "create sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.respond(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req payRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	var paidAt *time.Time
	if req.Date != "" {
		date, err := httpx.ParseDate(req.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		paidAt = &date
	}
	sale, err := h.service.MarkPaid(r.Context(), id, paidAt)
	if err != nil {
		h.respond(w, "mark sale paid", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
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
	if filter.CustomerID, err = httpx.QueryInt64(r, "customerId"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status, err := ParsePaymentStatus(raw)
		if err != nil {
			h.respond(w, "list sales", err)
			return
		}
		filter.Status = &status
	}
	if filter.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, total, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		h.respond(w, "list sales", err)
		return
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}
	httpx.JSON(w, http.StatusOK, listResponse{Sales: list, Total: total, Limit: limit, Offset: filter.Offset})
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", httpx.ErrValidation, name)
	}
	return v, nil
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrSaleNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateInvoice):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrInvalidSale), errors.Is(err, ErrCustomerNotFound), errors.Is(err, ErrAlreadyPaid):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, accounting.ErrMappingNotFound):
		httpx.ServerError(w, h.logger, "Ledger account mapping missing", err, slog.String("op", op))
	default:
		httpx.ServerError(w, h.logger, "Failed to "+op, err)
	}
}
