package schema

import (
	"testing"

	"github.com/vgrishin/docextract/internal/core/domain"
)

func testTemplate() *domain.VendorTemplate {
	return &domain.VendorTemplate{
		ID:       "tpl-1",
		VendorID: "vendor-1",
		Fields: []domain.TemplateField{
			{Name: "po_number", Type: domain.FieldTypeString, Required: true, Description: "purchase order reference"},
			{Name: "discount", Type: domain.FieldTypeNumber},
			{Name: "paid", Type: domain.FieldTypeBoolean},
			{Name: "delivery_date", Type: domain.FieldTypeDate},
		},
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := Build(testTemplate())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := Build(testTemplate())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if first.Instructions != second.Instructions {
		t.Fatalf("instructions differ across identical templates:\n%q\n%q", first.Instructions, second.Instructions)
	}
	if first.Instructions == "" {
		t.Fatalf("expected non-empty instructions for template with custom fields")
	}
}

func TestBuildNilTemplateHasNoInstructions(t *testing.T) {
	s, err := Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.Instructions != "" {
		t.Fatalf("expected empty instructions, got %q", s.Instructions)
	}
}

func TestValidateBaselineFields(t *testing.T) {
	s, err := Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	raw := []byte(`{
		"invoice_number": "INV-1",
		"invoice_date": "2026-03-01",
		"total_amount": 100,
		"currency": "USD",
		"line_items": [{"description": "widget", "quantity": 2, "unit_price": 50, "amount": 100}]
	}`)
	record, err := s.Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if record.InvoiceNumber == nil || *record.InvoiceNumber != "INV-1" {
		t.Fatalf("unexpected invoice number: %v", record.InvoiceNumber)
	}
	if record.TotalAmount == nil || *record.TotalAmount != 100 {
		t.Fatalf("unexpected total amount: %v", record.TotalAmount)
	}
	if len(record.LineItems) != 1 || record.LineItems[0].Description != "widget" {
		t.Fatalf("unexpected line items: %+v", record.LineItems)
	}
	if record.IsMeaningfullyEmpty() {
		t.Fatalf("record with fields must not be meaningfully empty")
	}
}

func TestValidateCoercesCustomFields(t *testing.T) {
	s, err := Build(testTemplate())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	raw := []byte(`{
		"invoice_number": "INV-2",
		"po_number": "PO-77",
		"discount": "1,250.50",
		"paid": "true",
		"delivery_date": "01.03.2026"
	}`)
	record, err := s.Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if record.CustomFields["po_number"] != "PO-77" {
		t.Fatalf("unexpected po_number: %v", record.CustomFields["po_number"])
	}
	if record.CustomFields["discount"] != 1250.50 {
		t.Fatalf("unexpected discount: %v", record.CustomFields["discount"])
	}
	if record.CustomFields["paid"] != true {
		t.Fatalf("unexpected paid: %v", record.CustomFields["paid"])
	}
	if record.CustomFields["delivery_date"] != "2026-03-01" {
		t.Fatalf("unexpected delivery_date: %v", record.CustomFields["delivery_date"])
	}
}

func TestValidateRejectsMissingRequiredCustomField(t *testing.T) {
	s, err := Build(testTemplate())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	_, err = s.Validate([]byte(`{"invoice_number": "INV-3"}`))
	if err == nil {
		t.Fatalf("expected validation error for missing required field")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput kind, got %v", err)
	}
}

func TestValidateRejectsNullRequiredCustomField(t *testing.T) {
	s, err := Build(testTemplate())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	_, err = s.Validate([]byte(`{"invoice_number": "INV-9", "po_number": null}`))
	if err == nil {
		t.Fatalf("expected validation error for required field set to null")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput kind, got %v", err)
	}
}

func TestValidateDropsNullOptionalCustomField(t *testing.T) {
	s, err := Build(testTemplate())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	record, err := s.Validate([]byte(`{"invoice_number": "INV-4", "po_number": "PO-1", "discount": null}`))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, ok := record.CustomFields["discount"]; ok {
		t.Fatalf("null optional field must be dropped, got %v", record.CustomFields["discount"])
	}
	if record.CustomFields["po_number"] != "PO-1" {
		t.Fatalf("unexpected po_number: %v", record.CustomFields["po_number"])
	}
}

func TestValidateMeaningfullyEmptyRecord(t *testing.T) {
	s, err := Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	record, err := s.Validate([]byte(`{"invoice_number": null, "total_amount": null}`))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !record.IsMeaningfullyEmpty() {
		t.Fatalf("expected meaningfully empty record")
	}
}

func TestBuildRejectsUnknownFieldType(t *testing.T) {
	tpl := &domain.VendorTemplate{
		Fields: []domain.TemplateField{{Name: "x", Type: "uuid"}},
	}
	if _, err := Build(tpl); err == nil {
		t.Fatalf("expected error for unknown field type")
	}
}
