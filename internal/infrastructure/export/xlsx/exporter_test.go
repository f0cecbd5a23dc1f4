package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/vgrishin/docextract/internal/core/domain"
)

func TestExportRequestWritesDocumentsAndSummary(t *testing.T) {
	amount := 1250.5
	currency := "USD"
	invoice := "INV-42"
	req := &domain.Request{
		Name:   "march invoices",
		Status: domain.ReqStatusPartial,
		Counts: domain.StatusCounts{Processed: 1, ValidationFailed: 1},
		Stats:  domain.RequestStats{SuccessRate: 50, TotalAmount: &amount, Currency: &currency},
	}
	docs := []domain.Document{
		{Filename: "a.pdf", Status: domain.DocStatusProcessed, InvoiceNumber: &invoice, TotalAmount: &amount, Currency: &currency},
		{Filename: "b.pdf", Status: domain.DocStatusValidationFailed, ValidationErrors: []string{"total_amount: below minimum"}},
	}

	data, err := NewExporter().ExportRequest(req, docs)
	if err != nil {
		t.Fatalf("ExportRequest() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Documents")
	if err != nil {
		t.Fatalf("read documents sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][2] != "INV-42" {
		t.Fatalf("unexpected invoice cell: %q", rows[1][2])
	}
	if rows[2][7] != "total_amount: below minimum" {
		t.Fatalf("unexpected error cell: %q", rows[2][7])
	}

	summary, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("read summary sheet: %v", err)
	}
	if len(summary) == 0 || summary[0][1] != "march invoices" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
