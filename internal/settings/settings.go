package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known keys. The store accepts arbitrary keys; these are the ones
// the rest of the system reads through the typed accessors.
const (
	KeyStoreName        = "store.name"
	KeyStoreAddress     = "store.address"
	KeyStoreTIN         = "store.tin"
	KeyReceiptPrefix    = "receipt.prefix"
	KeyBatchPrefix      = "batch.prefix"
	KeyRefundWindowDays = "refund.window_days"
	KeyLowStockLevel    = "stock.low_default"
)

// Defaults used when a key has never been written.
const (
	DefaultReceiptPrefix    = "OR"
	DefaultBatchPrefix      = "BN"
	DefaultRefundWindowDays = 7
	DefaultLowStockLevel    = 10
)

var ErrKeyNotFound = errors.New("settings: key not found")

// Repository abstracts the persistent key-value store.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Service reads settings through a Redis hot copy with the database as
// the source of truth. Writes go to the database first, then refresh
// the cache entry.
type Service struct {
	repo  Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewService(repo Repository, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func cacheKey(key string) string { return "settings:" + key }

// Get returns the raw value for key, or ErrKeyNotFound.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, cacheKey(key)).Result(); err == nil {
			return v, nil
		}
	}
	v, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey(key), v, s.ttl)
	}
	return v, nil
}

// Set writes the value and refreshes the hot copy.
func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("settings: key required")
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey(key), value, s.ttl)
	}
	return nil
}

// All returns every stored setting. Reads straight from the database;
// this is an admin surface, not a hot path.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	return s.repo.All(ctx)
}

func (s *Service) stringOr(ctx context.Context, key, fallback string) string {
	v, err := s.Get(ctx, key)
	if err != nil || strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func (s *Service) intOr(ctx context.Context, key string, fallback int) int {
	v, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// ReceiptPrefix prefixes official receipt numbers.
func (s *Service) ReceiptPrefix(ctx context.Context) string {
	return s.stringOr(ctx, KeyReceiptPrefix, DefaultReceiptPrefix)
}

// BatchPrefix prefixes generated batch numbers.
func (s *Service) BatchPrefix(ctx context.Context) string {
	return s.stringOr(ctx, KeyBatchPrefix, DefaultBatchPrefix)
}

// RefundWindowDays is how long after creation a sale stays refundable.
func (s *Service) RefundWindowDays(ctx context.Context) int {
	return s.intOr(ctx, KeyRefundWindowDays, DefaultRefundWindowDays)
}

// LowStockLevel is the reorder level applied to products without one.
func (s *Service) LowStockLevel(ctx context.Context) int {
	return s.intOr(ctx, KeyLowStockLevel, DefaultLowStockLevel)
}

// StoreName is the identity printed on receipts.
func (s *Service) StoreName(ctx context.Context) string {
	return s.stringOr(ctx, KeyStoreName, "")
}
