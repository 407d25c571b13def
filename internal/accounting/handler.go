package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/platform/httpx"
)

const manualSourceModule = "MANUAL"

// LedgerService is the contract the HTTP layer depends on.
type LedgerService interface {
	PostJournal(ctx context.Context, input PostingInput) (JournalEntry, error)
	ReverseJournal(ctx context.Context, input ReverseInput) (JournalEntry, error)
	GetJournal(ctx context.Context, id int64) (JournalEntry, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, accountType *AccountType) ([]Account, error)
	CheckIntegrity(ctx context.Context) (IntegrityReport, error)
}

// Handler wires finance ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service LedgerService
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service LedgerService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/journal-entries", h.handlePostJournal)
	r.Get("/journal-entries/{id}", h.handleGetJournal)
	r.Post("/journal-entries/{id}/reverse", h.handleReverseJournal)
	r.Get("/accounts", h.handleListAccounts)
	r.Post("/accounts", h.handleCreateAccount)
	r.Get("/accounts/{id}", h.handleGetAccount)
	r.Get("/integrity", h.handleIntegrity)
}

type postLineRequest struct {
	AccountID int64           `json:"accountId" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo" validate:"max=500"`
}

type postJournalRequest struct {
	Date         string            `json:"date" validate:"required"`
	Description  string            `json:"description" validate:"required,max=500"`
	Reference    string            `json:"reference" validate:"max=100"`
	SourceModule string            `json:"sourceModule" validate:"omitempty,max=50"`
	SourceID     *uuid.UUID        `json:"sourceId"`
	Lines        []postLineRequest `json:"lines" validate:"required,dive"`
}

type reverseRequest struct {
	Date        string `json:"date"`
	Description string `json:"description" validate:"max=500"`
}

type createAccountRequest struct {
	Code string `json:"code" validate:"required,numeric,len=4"`
	Name string `json:"name" validate:"required,max=200"`
	Type string `json:"type" validate:"required"`
}

func (h *Handler) handlePostJournal(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := PostingInput{
		Date:         date,
		Description:  req.Description,
		Reference:    req.Reference,
		SourceModule: req.SourceModule,
		Lines:        make([]PostingLineInput, 0, len(req.Lines)),
	}
	if input.SourceModule == "" {
		input.SourceModule = manualSourceModule
	}
	if req.SourceID != nil {
		input.SourceID = *req.SourceID
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	entry, err := h.service.PostJournal(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			err = fmt.Errorf("%w: %v", ErrInvalidLine, err)
		}
		h.respond(w, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetJournal(r.Context(), id)
	if err != nil {
		h.respond(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleReverseJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	input := ReverseInput{EntryID: id, Description: req.Description}
	if req.Date != "" {
		date, err := httpx.ParseDate(req.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.TargetDate = &date
	}
	entry, err := h.service.ReverseJournal(r.Context(), input)
	if err != nil {
		h.respond(w, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	var filter *AccountType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := ParseAccountType(raw)
		if err != nil {
			h.respond(w, "list accounts", err)
			return
		}
		filter = &t
	}
	accounts, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.respond(w, "list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := ParseAccountType(req.Type)
	if err != nil {
		h.respond(w, "create account", err)
		return
	}
	acct, err := h.service.CreateAccount(r.Context(), CreateAccountInput{Code: req.Code, Name: req.Name, Type: t})
	if err != nil {
		h.respond(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acct)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.respond(w, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.CheckIntegrity(r.Context())
	if err != nil {
		httpx.ServerError(w, h.logger, "Failed to check ledger integrity", err)
		return
	}
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusConflict
	}
	httpx.JSON(w, status, report)
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	mapped := MapError(err)
	if !errors.Is(mapped, httpx.ErrValidation) && !errors.Is(mapped, httpx.ErrNotFound) && !errors.Is(mapped, httpx.ErrDuplicate) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, mapped)
}

// MapError translates ledger errors into httpx categories.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrJournalNotFound):
		return fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, ErrSourceAlreadyLinked), errors.Is(err, ErrDuplicateAccount):
		return fmt.Errorf("%w: %v", httpx.ErrDuplicate, err)
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines), errors.Is(err, ErrInvalidLine),
		errors.Is(err, ErrInvalidPosting), errors.Is(err, ErrInvalidAccount), errors.Is(err, ErrUnknownAccountType),
		errors.Is(err, ErrMappingNotFound):
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, ErrAccountNotFound):
		return fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	default:
		return err
	}
}
