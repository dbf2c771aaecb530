package imports

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/botica-pos/botica/internal/stock"
)

// Expected CSV header. Column order is fixed; batch_number, expiry_date
// and received_at may be left empty per row.
var header = []string{
	"product_id", "batch_number", "quantity",
	"cost_price", "selling_price", "expiry_date", "received_at",
}

var ErrBadHeader = errors.New("imports: unexpected CSV header")

// StockPort is the slice of the stock service the importer drives. Rows
// go through the same validation as manual batch entry.
type StockPort interface {
	CreateBatch(ctx context.Context, input stock.CreateBatchInput) (stock.Batch, error)
}

// RowError reports one rejected row. Row numbers are 1-based and count
// the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result summarizes an import run. Valid rows are committed even when
// others fail.
type Result struct {
	Created int        `json:"created"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Importer reads batch receipt CSVs and feeds them to the stock service
// row by row.
type Importer struct {
	stock StockPort
	now   func() time.Time
}

func NewImporter(stockSvc StockPort) *Importer {
	return &Importer{stock: stockSvc, now: time.Now}
}

// Run imports the CSV stream. A malformed header aborts; a malformed
// row is recorded and skipped.
func (im *Importer) Run(ctx context.Context, r io.Reader, actorID int64) (Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	head, err := reader.Read()
	if err != nil {
		return Result{}, ErrBadHeader
	}
	if !headerMatches(head) {
		return Result{}, fmt.Errorf("%w: got %v", ErrBadHeader, head)
	}

	var result Result
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		input, err := im.parseRow(record)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		input.ActorID = actorID
		if _, err := im.stock.CreateBatch(ctx, input); err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Created++
	}
	return result, nil
}

func headerMatches(got []string) bool {
	if len(got) != len(header) {
		return false
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want) {
			return false
		}
	}
	return true
}

func (im *Importer) parseRow(record []string) (stock.CreateBatchInput, error) {
	if len(record) != len(header) {
		return stock.CreateBatchInput{}, fmt.Errorf("expected %d columns, got %d", len(header), len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	productID, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil || productID <= 0 {
		return stock.CreateBatchInput{}, fmt.Errorf("invalid product_id %q", record[0])
	}
	quantity, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil {
		return stock.CreateBatchInput{}, fmt.Errorf("invalid quantity %q", record[2])
	}
	cost, err := decimal.NewFromString(record[3])
	if err != nil {
		return stock.CreateBatchInput{}, fmt.Errorf("invalid cost_price %q", record[3])
	}
	sell, err := decimal.NewFromString(record[4])
	if err != nil {
		return stock.CreateBatchInput{}, fmt.Errorf("invalid selling_price %q", record[4])
	}

	input := stock.CreateBatchInput{
		ProductID:    productID,
		BatchNumber:  record[1],
		Quantity:     quantity,
		CostPrice:    cost,
		SellingPrice: sell,
		ReceivedAt:   im.now(),
	}
	if record[5] != "" {
		expiry, err := time.Parse("2006-01-02", record[5])
		if err != nil {
			return stock.CreateBatchInput{}, fmt.Errorf("invalid expiry_date %q", record[5])
		}
		input.ExpiryDate = &expiry
	}
	if record[6] != "" {
		received, err := time.Parse("2006-01-02", record[6])
		if err != nil {
			return stock.CreateBatchInput{}, fmt.Errorf("invalid received_at %q", record[6])
		}
		input.ReceivedAt = received
	}
	return input, nil
}
