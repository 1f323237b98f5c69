// Package export renders an account's invoice history as PDF or XLSX.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	billing "hydrospark/internal/billing/domain"
	"hydrospark/internal/observability/metrics"
	"hydrospark/internal/store"
	usage "hydrospark/internal/usage/domain"
)

// Format selects the document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for formats other than pdf and xlsx.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat converts a CLI value into a Format.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatPDF, FormatXLSX:
		return Format(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
	}
}

// Statement is an account with its invoices in period order.
type Statement struct {
	Account     usage.Account
	Invoices    []billing.Invoice
	Currency    string
	GeneratedAt time.Time
}

// Total sums quantities and amounts across the invoices.
func (s Statement) Total() (quantity, amount decimal.Decimal) {
	quantity, amount = decimal.Zero, decimal.Zero
	for _, inv := range s.Invoices {
		quantity = quantity.Add(inv.Quantity)
		amount = amount.Add(inv.Amount)
	}
	return quantity, amount
}

// Exporter loads statements and renders them.
type Exporter struct {
	factory  store.Factory
	currency string
	now      func() time.Time
}

// NewExporter constructs an exporter.
func NewExporter(factory store.Factory, currency string) (*Exporter, error) {
	if factory == nil {
		return nil, errors.New("export: nil store factory")
	}
	if currency == "" {
		currency = "USD"
	}
	return &Exporter{factory: factory, currency: currency, now: time.Now}, nil
}

// Export renders the invoice history of accountID.
func (e *Exporter) Export(ctx context.Context, accountID string, format Format) (data []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveExport(string(format), metrics.ResultOf(err), time.Since(start))
	}()

	var stmt Statement
	err = store.Run(ctx, e.factory, func(uow store.UnitOfWork) error {
		account, err := uow.Accounts().Get(ctx, accountID)
		if err != nil {
			return err
		}
		invoices, err := uow.Invoices().ListByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		stmt = Statement{Account: *account, Invoices: invoices, Currency: e.currency, GeneratedAt: e.now().UTC()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", accountID, err)
	}

	switch format {
	case FormatPDF:
		return BuildInvoicePDF(stmt)
	case FormatXLSX:
		return BuildInvoiceXLSX(stmt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// BuildInvoicePDF renders a statement PDF.
func BuildInvoicePDF(stmt Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Invoice Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Account: %s (%s)", stmt.Account.ID, stmt.Account.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Type: %s", stmt.Account.Type))
	pdf.Ln(5)
	if stmt.Account.Region != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Region: %s", stmt.Account.Region))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", stmt.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)

	quantity, amount := stmt.Total()
	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total Quantity: %s", quantity.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Amount (%s): %s", stmt.Currency, amount.StringFixed(2)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	headers := []struct {
		title string
		width float64
	}{
		{"Period", 44}, {"Quantity", 26}, {"Unit Price", 24}, {"Amount", 26}, {"Source", 20}, {"Due", 24}, {"Status", 20},
	}
	for _, h := range headers {
		pdf.CellFormat(h.width, 6, h.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, inv := range stmt.Invoices {
		period := inv.PeriodStart.Format(time.DateOnly) + " - " + inv.PeriodEnd.Format("01-02")
		status := string(inv.Status)
		if inv.Estimated {
			status += "*"
		}
		pdf.CellFormat(44, 6, period, "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, inv.Quantity.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(24, 6, inv.UnitPrice.StringFixed(4), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, inv.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, string(inv.RateSource), "1", 0, "C", false, 0, "")
		pdf.CellFormat(24, 6, inv.DueDate.Format(time.DateOnly), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	if anyEstimated(stmt.Invoices) {
		pdf.Ln(4)
		pdf.Cell(0, 6, "* includes estimated readings")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInvoiceXLSX renders a statement workbook with summary and invoices sheets.
func BuildInvoiceXLSX(stmt Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	invoicesSheet := "invoices"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(invoicesSheet); err != nil {
		return nil, err
	}

	quantity, amount := stmt.Total()
	_ = f.SetCellValue(summarySheet, "A1", "Invoice Statement")
	_ = f.SetCellValue(summarySheet, "A3", "Account")
	_ = f.SetCellValue(summarySheet, "B3", stmt.Account.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Name")
	_ = f.SetCellValue(summarySheet, "B4", stmt.Account.Name)
	_ = f.SetCellValue(summarySheet, "A5", "Type")
	_ = f.SetCellValue(summarySheet, "B5", string(stmt.Account.Type))
	_ = f.SetCellValue(summarySheet, "A6", "Region")
	_ = f.SetCellValue(summarySheet, "B6", stmt.Account.Region)
	_ = f.SetCellValue(summarySheet, "A7", "Invoices")
	_ = f.SetCellValue(summarySheet, "B7", len(stmt.Invoices))
	_ = f.SetCellValue(summarySheet, "A8", "Total Quantity")
	_ = f.SetCellValue(summarySheet, "B8", quantity.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A9", "Total Amount")
	_ = f.SetCellValue(summarySheet, "B9", amount.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A10", "Currency")
	_ = f.SetCellValue(summarySheet, "B10", stmt.Currency)
	_ = f.SetCellValue(summarySheet, "A11", "Generated")
	_ = f.SetCellValue(summarySheet, "B11", stmt.GeneratedAt.Format(time.RFC3339))

	headers := []string{"Invoice", "Period Start", "Period End", "Quantity", "Unit Price", "Amount",
		"Rate Source", "Due Date", "Status", "Estimated"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(invoicesSheet, cell, h)
	}
	for i, inv := range stmt.Invoices {
		row := i + 2
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("A%d", row), inv.ID)
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("B%d", row), inv.PeriodStart.Format(time.DateOnly))
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("C%d", row), inv.PeriodEnd.Format(time.DateOnly))
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("D%d", row), inv.Quantity.InexactFloat64())
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("E%d", row), inv.UnitPrice.InexactFloat64())
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("F%d", row), inv.Amount.InexactFloat64())
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("G%d", row), string(inv.RateSource))
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("H%d", row), inv.DueDate.Format(time.DateOnly))
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("I%d", row), string(inv.Status))
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("J%d", row), inv.Estimated)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func anyEstimated(invoices []billing.Invoice) bool {
	for _, inv := range invoices {
		if inv.Estimated {
			return true
		}
	}
	return false
}
