// Package xlsx renders a request and its documents into a spreadsheet report.
package xlsx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vgrishin/docextract/internal/core/domain"
)

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

const documentsSheet = "Documents"
const summarySheet = "Summary"

func (e *Exporter) ExportRequest(req *domain.Request, docs []domain.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(documentsSheet)
	if err != nil {
		return nil, fmt.Errorf("create documents sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	if err := writeDocuments(f, docs); err != nil {
		return nil, err
	}
	if err := writeSummary(f, req); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDocuments(f *excelize.File, docs []domain.Document) error {
	header := []any{"Filename", "Status", "Invoice Number", "Invoice Date", "Total Amount", "Currency", "Retries", "Error"}
	if err := f.SetSheetRow(documentsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, doc := range docs {
		row := []any{
			doc.Filename,
			string(doc.Status),
			orDash(doc.InvoiceNumber),
			orDash(doc.InvoiceDate),
			amountCell(doc.TotalAmount),
			orDash(doc.Currency),
			doc.RetryCount,
			documentError(doc),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(documentsSheet, cell, &row); err != nil {
			return fmt.Errorf("write document row: %w", err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, req *domain.Request) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]any{
		{"Request", req.Name},
		{"Status", string(req.Status)},
		{"Documents", req.Counts.Total()},
		{"Processed", req.Counts.Processed},
		{"Validation Failed", req.Counts.ValidationFailed},
		{"Failed", req.Counts.Failed},
		{"Success Rate (%)", req.Stats.SuccessRate},
		{"Total Amount", amountCell(req.Stats.TotalAmount)},
		{"Average Amount", amountCell(req.Stats.AverageAmount)},
		{"Currency", orDash(req.Stats.Currency)},
	}
	if req.Stats.AvgProcessingTimeMs != nil {
		rows = append(rows, []any{"Avg Processing Time (ms)", *req.Stats.AvgProcessingTimeMs})
	}

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}

func orDash(value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "-"
	}
	return *value
}

func amountCell(value *float64) any {
	if value == nil {
		return "-"
	}
	return *value
}

func documentError(doc domain.Document) string {
	if len(doc.ValidationErrors) > 0 {
		return strings.Join(doc.ValidationErrors, "; ")
	}
	return doc.Error
}
