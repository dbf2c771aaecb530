package imports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botica-pos/botica/internal/stock"
)

type fakeStock struct {
	created []stock.CreateBatchInput
	fail    map[int64]error
}

func (f *fakeStock) CreateBatch(_ context.Context, input stock.CreateBatchInput) (stock.Batch, error) {
	if err, ok := f.fail[input.ProductID]; ok {
		return stock.Batch{}, err
	}
	f.created = append(f.created, input)
	return stock.Batch{ID: int64(len(f.created)), ProductID: input.ProductID}, nil
}

const csvHeader = "product_id,batch_number,quantity,cost_price,selling_price,expiry_date,received_at\n"

func TestRunImportsValidRows(t *testing.T) {
	st := &fakeStock{}
	im := NewImporter(st)

	input := csvHeader +
		"1,BN-001,100,3.50,5.00,2027-01-31,2026-08-01\n" +
		"2,,50,10.00,14.00,,\n"

	result, err := im.Run(context.Background(), strings.NewReader(input), 7)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Empty(t, result.Errors)
	require.Len(t, st.created, 2)

	first := st.created[0]
	assert.Equal(t, int64(1), first.ProductID)
	assert.Equal(t, "BN-001", first.BatchNumber)
	assert.Equal(t, int64(100), first.Quantity)
	assert.Equal(t, "3.5", first.CostPrice.String())
	require.NotNil(t, first.ExpiryDate)
	assert.Equal(t, "2027-01-31", first.ExpiryDate.Format("2006-01-02"))
	assert.Equal(t, "2026-08-01", first.ReceivedAt.Format("2006-01-02"))
	assert.Equal(t, int64(7), first.ActorID)

	// Empty optional columns fall back to now / generated number.
	second := st.created[1]
	assert.Empty(t, second.BatchNumber)
	assert.Nil(t, second.ExpiryDate)
	assert.WithinDuration(t, time.Now(), second.ReceivedAt, time.Minute)
}

func TestRunRejectsBadHeader(t *testing.T) {
	im := NewImporter(&fakeStock{})

	_, err := im.Run(context.Background(), strings.NewReader("sku,qty\n1,2\n"), 1)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestRunCollectsRowErrors(t *testing.T) {
	st := &fakeStock{fail: map[int64]error{9: stock.ErrDuplicateBatchNumber}}
	im := NewImporter(st)

	input := csvHeader +
		"1,BN-001,100,3.50,5.00,,\n" +
		"abc,BN-002,10,1.00,2.00,,\n" +
		"2,BN-003,10,not-a-price,2.00,,\n" +
		"3,BN-004,10,1.00,2.00,31-01-2027,\n" +
		"9,BN-005,10,1.00,2.00,,\n"

	result, err := im.Run(context.Background(), strings.NewReader(input), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "product_id")
	assert.Contains(t, result.Errors[1].Message, "cost_price")
	assert.Contains(t, result.Errors[2].Message, "expiry_date")
	assert.Contains(t, result.Errors[3].Message, "batch number already exists")
}

func TestRunToleratesColumnCountMismatch(t *testing.T) {
	im := NewImporter(&fakeStock{})

	input := csvHeader + "1,BN-001,100\n"
	result, err := im.Run(context.Background(), strings.NewReader(input), 1)
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	require.Len(t, result.Errors, 1)
}
