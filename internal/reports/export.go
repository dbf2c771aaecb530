package reports

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteSummaryCSV serialises the range summary as metric/value pairs.
func WriteSummaryCSV(w io.Writer, s Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"From", s.From.Format("2006-01-02")},
		{"To", s.To.Format("2006-01-02")},
		{"Gross Sales", s.GrossSales.StringFixed(2)},
		{"Discounts", s.DiscountTotal.StringFixed(2)},
		{"Net Sales", s.NetSales.StringFixed(2)},
		{"Transactions", strconv.FormatInt(s.Transactions, 10)},
		{"Average Ticket", s.AverageTicket.StringFixed(2)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDailyCSV emits the day-by-day sales series.
func WriteDailyCSV(w io.Writer, points []DailyPoint) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Day", "Net Sales", "Transactions"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := writer.Write([]string{
			p.Day, p.NetSales.StringFixed(2), strconv.FormatInt(p.Transactions, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteValuationCSV emits the stock valuation audit view.
func WriteValuationCSV(w io.Writer, rows []ValuationRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Product ID", "Name", "Quantity", "Value"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			strconv.FormatInt(row.ProductID, 10), row.Name,
			strconv.FormatInt(row.Quantity, 10), row.Value.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
