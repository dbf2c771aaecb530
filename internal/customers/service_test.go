package customers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	customers map[int64]*Customer
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{customers: make(map[int64]*Customer)}
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Customer, error) {
	if c, ok := r.customers[id]; ok {
		return *c, nil
	}
	return Customer{}, ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var out []Customer
	for _, c := range r.customers {
		if req.ActiveOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(_ context.Context, c Customer) (Customer, error) {
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.customers[c.ID] = &c
	return c, nil
}

func (r *memoryRepo) Update(_ context.Context, c Customer) error {
	if _, ok := r.customers[c.ID]; !ok {
		return ErrNotFound
	}
	r.customers[c.ID] = &c
	return nil
}

func (r *memoryRepo) FindActiveByPhone(_ context.Context, phone string) (Customer, error) {
	for _, c := range r.customers {
		if c.IsActive && c.Phone != nil && *c.Phone == phone {
			return *c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *memoryRepo) FindActiveByEmail(_ context.Context, email string) (Customer, error) {
	for _, c := range r.customers {
		if c.IsActive && c.Email != nil && strings.EqualFold(*c.Email, email) {
			return *c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *memoryRepo) FindActiveByName(_ context.Context, name string) (Customer, error) {
	for _, c := range r.customers {
		if c.IsActive && strings.EqualFold(c.Name, name) {
			return *c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (r *memoryRepo) ApplySale(_ context.Context, id int64, total decimal.Decimal, at time.Time) error {
	c, ok := r.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.PurchaseCount++
	c.TotalSpent = c.TotalSpent.Add(total)
	c.LastPurchaseAt = &at
	return nil
}

func (r *memoryRepo) RecalculateStats(context.Context) (int64, error) { return 0, nil }

func strPtr(s string) *string { return &s }

func TestCreateNormalizesContactFields(t *testing.T) {
	svc := NewService(newMemoryRepo())

	c, err := svc.Create(context.Background(), CreateCustomerRequest{
		Name:  "Maria Santos",
		Phone: strPtr("+63 917-555-0101"),
		Email: strPtr("  Maria@Example.COM "),
	})
	require.NoError(t, err)
	require.NotNil(t, c.Phone)
	assert.Equal(t, "+639175550101", *c.Phone)
	require.NotNil(t, c.Email)
	assert.Equal(t, "maria@example.com", *c.Email)
}

func TestCreateEnforcesUniqueness(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCustomerRequest{
		Name: "Maria Santos", Phone: strPtr("09175550101"), Email: strPtr("maria@example.com"),
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCustomerRequest{
		Name: "Other Person", Phone: strPtr("0917 555 0101"),
	})
	assert.ErrorIs(t, err, ErrDuplicatePhone)

	_, err = svc.Create(ctx, CreateCustomerRequest{
		Name: "Other Person", Email: strPtr("MARIA@example.com"),
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAnonymizeFreesContactFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCustomerRequest{
		Name: "Maria Santos", Phone: strPtr("09175550101"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Anonymize(ctx, c.ID))

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.Phone)
	assert.Nil(t, got.Email)
	assert.NotContains(t, got.Name, "Maria")

	// The phone is reusable once its holder is anonymized.
	_, err = svc.Create(ctx, CreateCustomerRequest{
		Name: "New Person", Phone: strPtr("09175550101"),
	})
	assert.NoError(t, err)

	// Anonymization is one-way.
	assert.ErrorIs(t, svc.Anonymize(ctx, c.ID), ErrInactive)
}

func TestUpdateInactiveRejected(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCustomerRequest{Name: "Maria Santos"})
	require.NoError(t, err)
	require.NoError(t, svc.Anonymize(ctx, c.ID))

	_, err = svc.Update(ctx, c.ID, UpdateCustomerRequest{Name: strPtr("New Name")})
	assert.ErrorIs(t, err, ErrInactive)
}

func TestMatchPrecedence(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	byPhone, err := svc.Create(ctx, CreateCustomerRequest{
		Name: "Ana Cruz", Phone: strPtr("09170000001"),
	})
	require.NoError(t, err)
	byEmail, err := svc.Create(ctx, CreateCustomerRequest{
		Name: "Ana Cruz", Email: strPtr("ana@example.com"),
	})
	require.NoError(t, err)

	// Phone wins over email and name.
	got, err := svc.Match(ctx, MatchHint{
		Phone: "0917-000-0001", Email: "ana@example.com", Name: "ana cruz",
	})
	require.NoError(t, err)
	assert.Equal(t, byPhone.ID, got.ID)

	// Email wins over name.
	got, err = svc.Match(ctx, MatchHint{Email: "ANA@example.com", Name: "ana cruz"})
	require.NoError(t, err)
	assert.Equal(t, byEmail.ID, got.ID)

	// Name alone matches case-insensitively.
	got, err = svc.Match(ctx, MatchHint{Name: "ANA CRUZ"})
	require.NoError(t, err)
	assert.NotZero(t, got.ID)

	_, err = svc.Match(ctx, MatchHint{Phone: "09999999999"})
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = svc.Match(ctx, MatchHint{})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestApplySaleUpdatesStats(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCustomerRequest{Name: "Maria Santos"})
	require.NoError(t, err)

	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ApplySale(ctx, c.ID, decimal.RequireFromString("150.00"), at))

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.PurchaseCount)
	assert.True(t, decimal.RequireFromString("150.00").Equal(got.TotalSpent))
	require.NotNil(t, got.LastPurchaseAt)
	assert.True(t, at.Equal(*got.LastPurchaseAt))
}
