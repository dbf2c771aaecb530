package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Repository abstracts customer persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, c Customer) error
	FindActiveByPhone(ctx context.Context, phone string) (Customer, error)
	FindActiveByEmail(ctx context.Context, email string) (Customer, error)
	FindActiveByName(ctx context.Context, name string) (Customer, error)
	ApplySale(ctx context.Context, id int64, total decimal.Decimal, at time.Time) error
	RecalculateStats(ctx context.Context) (int64, error)
}

// Service coordinates customer operations.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new customer, enforcing phone/email uniqueness among
// active records.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	c := Customer{
		Name:     strings.TrimSpace(req.Name),
		Email:    normalizeEmail(req.Email),
		Phone:    normalizePhonePtr(req.Phone),
		Address:  req.Address,
		IsActive: true,
	}
	if c.Name == "" {
		return Customer{}, fmt.Errorf("customers: name required")
	}
	if err := s.checkUnique(ctx, 0, c.Phone, c.Email); err != nil {
		return Customer{}, err
	}
	return s.repo.Create(ctx, c)
}

// Update edits customer fields. Nil request fields are left alone.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if !c.IsActive {
		return Customer{}, ErrInactive
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return Customer{}, fmt.Errorf("customers: name required")
		}
		c.Name = name
	}
	if req.Phone != nil {
		c.Phone = normalizePhonePtr(req.Phone)
	}
	if req.Email != nil {
		c.Email = normalizeEmail(req.Email)
	}
	if req.Address != nil {
		c.Address = req.Address
	}
	if err := s.checkUnique(ctx, id, c.Phone, c.Email); err != nil {
		return Customer{}, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers matching the request plus the unpaged total.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// Anonymize implements customer "deletion": PII is overwritten and the
// record flagged inactive so historical transactions keep their reference.
// The operation is irreversible.
func (s *Service) Anonymize(ctx context.Context, id int64) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return ErrInactive
	}
	c.Name = fmt.Sprintf("Deleted Customer %d", c.ID)
	c.Phone = nil
	c.Email = nil
	c.Address = nil
	c.IsActive = false
	return s.repo.Update(ctx, c)
}

// ApplySale folds a completed sale into the customer's cached purchase
// statistics.
func (s *Service) ApplySale(ctx context.Context, id int64, total decimal.Decimal, at time.Time) error {
	return s.repo.ApplySale(ctx, id, total, at)
}

// RecalculateStats rebuilds the cached statistics from the transaction
// history. Run by the scheduled reconciliation job.
func (s *Service) RecalculateStats(ctx context.Context) (int64, error) {
	return s.repo.RecalculateStats(ctx)
}

func (s *Service) checkUnique(ctx context.Context, selfID int64, phone, email *string) error {
	if phone != nil {
		existing, err := s.repo.FindActiveByPhone(ctx, *phone)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && existing.ID != selfID {
			return ErrDuplicatePhone
		}
	}
	if email != nil {
		existing, err := s.repo.FindActiveByEmail(ctx, *email)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && existing.ID != selfID {
			return ErrDuplicateEmail
		}
	}
	return nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	norm := strings.ToLower(strings.TrimSpace(*email))
	if norm == "" {
		return nil
	}
	return &norm
}

func normalizePhonePtr(phone *string) *string {
	if phone == nil {
		return nil
	}
	norm := NormalizePhone(*phone)
	if norm == "" {
		return nil
	}
	return &norm
}

// NormalizePhone strips formatting characters so equal numbers compare
// equal regardless of how the cashier typed them.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
