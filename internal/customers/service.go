package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const defaultListLimit = 50

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a customer. A blank code is replaced with the next generated one.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	customer := Customer{
		Code:   strings.TrimSpace(req.Code),
		Name:   strings.TrimSpace(req.Name),
		Sector: strings.TrimSpace(req.Sector),
		City:   strings.TrimSpace(req.City),
		Region: strings.TrimSpace(req.Region),
		Phone:  strings.TrimSpace(req.Phone),
		Email:  strings.TrimSpace(req.Email),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if customer.Code == "" {
			code, err := repo.GenerateCode(ctx)
			if err != nil {
				return fmt.Errorf("generate customer code: %w", err)
			}
			customer.Code = code
		} else {
			existing, err := repo.GetByCode(ctx, customer.Code)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("check existing customer: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, customer.Code)
			}
		}
		var err error
		customer, err = repo.Create(ctx, customer)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer created", slog.Int64("id", customer.ID), slog.String("code", customer.Code))
	return &customer, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}
	return s.repo.List(ctx, req)
}
