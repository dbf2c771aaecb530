package reports

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// Repository runs the aggregate queries behind each report.
type Repository interface {
	Summary(ctx context.Context, from, to time.Time) (Summary, error)
	Daily(ctx context.Context, from, to time.Time) ([]DailyPoint, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
	Expiring(ctx context.Context, within time.Duration) ([]ExpiringBatch, error)
	Valuation(ctx context.Context) ([]ValuationRow, error)
}

// Service serves reports through the versioned cache.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

const defaultTopLimit = 10

func rangeKey(name string, from, to time.Time) []string {
	return []string{"reports", name, from.Format("2006-01-02"), to.Format("2006-01-02")}
}

func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	var out Summary
	key, err := s.cache.BuildKey(ctx, rangeKey("summary", from, to)...)
	if err != nil {
		return Summary{}, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.Summary(ctx, from, to)
	})
	return out, err
}

func (s *Service) Daily(ctx context.Context, from, to time.Time) ([]DailyPoint, error) {
	var out []DailyPoint
	key, err := s.cache.BuildKey(ctx, rangeKey("daily", from, to)...)
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.Daily(ctx, from, to)
	})
	return out, err
}

func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	var out []TopProduct
	key, err := s.cache.BuildKey(ctx, append(rangeKey("top", from, to), strconv.Itoa(limit))...)
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.TopProducts(ctx, from, to, limit)
	})
	return out, err
}

func (s *Service) Expiring(ctx context.Context, within time.Duration) ([]ExpiringBatch, error) {
	if within <= 0 {
		within = 30 * 24 * time.Hour
	}
	var out []ExpiringBatch
	key, err := s.cache.BuildKey(ctx, "reports", "expiring", within.String())
	if err != nil {
		return nil, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.Expiring(ctx, within)
	})
	return out, err
}

// Valuation is served uncached; it is an occasional audit view and its
// inputs shift with every stock movement.
func (s *Service) Valuation(ctx context.Context) ([]ValuationRow, error) {
	return s.repo.Valuation(ctx)
}

// Dashboard assembles the storefront view, fanning the four panels out
// concurrently.
func (s *Service) Dashboard(ctx context.Context, from, to time.Time) (Dashboard, error) {
	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dash.Summary, err = s.Summary(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		dash.Daily, err = s.Daily(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		dash.TopProducts, err = s.TopProducts(gctx, from, to, defaultTopLimit)
		return err
	})
	g.Go(func() error {
		var err error
		dash.Expiring, err = s.Expiring(gctx, 30*24*time.Hour)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}

// Invalidate drops every cached report. Called after bulk mutations
// such as imports and the expiry sweep.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
