package settings

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	values map[string]string
	gets   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{values: make(map[string]string)}
}

func (r *memoryRepo) Get(_ context.Context, key string) (string, error) {
	r.gets++
	if v, ok := r.values[key]; ok {
		return v, nil
	}
	return "", ErrKeyNotFound
}

func (r *memoryRepo) Set(_ context.Context, key, value string) error {
	r.values[key] = value
	return nil
}

func (r *memoryRepo) All(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out, nil
}

func newCachedService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newMemoryRepo()
	return NewService(repo, client, time.Minute), repo
}

func TestDefaultsWhenUnset(t *testing.T) {
	svc, _ := newCachedService(t)
	ctx := context.Background()

	assert.Equal(t, "OR", svc.ReceiptPrefix(ctx))
	assert.Equal(t, "BN", svc.BatchPrefix(ctx))
	assert.Equal(t, 7, svc.RefundWindowDays(ctx))
	assert.Equal(t, 10, svc.LowStockLevel(ctx))
}

func TestSetOverridesDefaults(t *testing.T) {
	svc, _ := newCachedService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, KeyReceiptPrefix, "SI"))
	require.NoError(t, svc.Set(ctx, KeyRefundWindowDays, "14"))

	assert.Equal(t, "SI", svc.ReceiptPrefix(ctx))
	assert.Equal(t, 14, svc.RefundWindowDays(ctx))
}

func TestMalformedIntFallsBack(t *testing.T) {
	svc, _ := newCachedService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, KeyRefundWindowDays, "soon"))
	assert.Equal(t, 7, svc.RefundWindowDays(ctx))

	require.NoError(t, svc.Set(ctx, KeyRefundWindowDays, "-3"))
	assert.Equal(t, 7, svc.RefundWindowDays(ctx))
}

func TestReadsServedFromCache(t *testing.T) {
	svc, repo := newCachedService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, KeyStoreName, "Botica San Roque"))
	repo.gets = 0

	for i := 0; i < 5; i++ {
		assert.Equal(t, "Botica San Roque", svc.StoreName(ctx))
	}
	assert.Zero(t, repo.gets)
}

func TestCacheMissFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	repo.values[KeyStoreName] = "Botica San Roque"
	svc := NewService(repo, client, time.Minute)
	ctx := context.Background()

	assert.Equal(t, "Botica San Roque", svc.StoreName(ctx))
	assert.Equal(t, 1, repo.gets)

	// Second read comes from the hot copy.
	assert.Equal(t, "Botica San Roque", svc.StoreName(ctx))
	assert.Equal(t, 1, repo.gets)
}

func TestWorksWithoutCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, 0)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, KeyBatchPrefix, "LOT"))
	assert.Equal(t, "LOT", svc.BatchPrefix(ctx))
}
