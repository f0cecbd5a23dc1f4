// Package schema builds the per-vendor extraction schema at runtime: a
// natural-language instruction fragment for the provider prompt and a compiled
// JSON-Schema validator for the structured response. Building is deterministic
// for a given template and performs no I/O.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vgrishin/docextract/internal/core/domain"
)

const resourceName = "extraction.json"

type Schema struct {
	// Instructions describes the vendor-specific fields for the prompt.
	// Empty when the template declares none.
	Instructions string

	compiled *jsonschema.Schema
	fields   []domain.TemplateField
}

// Build compiles the extraction schema for an optional vendor template.
func Build(tpl *domain.VendorTemplate) (*Schema, error) {
	var fields []domain.TemplateField
	if tpl != nil {
		for _, field := range tpl.Fields {
			if strings.TrimSpace(field.Name) == "" {
				continue
			}
			if !field.Type.Valid() {
				return nil, domain.WrapError(domain.ErrInvalidInput, "build schema",
					fmt.Errorf("field %q has unknown type %q", field.Name, field.Type))
			}
			fields = append(fields, field)
		}
	}

	doc, err := json.Marshal(buildSchemaDocument(fields))
	if err != nil {
		return nil, fmt.Errorf("marshal schema document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, strings.NewReader(string(doc))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Schema{
		Instructions: buildFieldInstructions(fields),
		compiled:     compiled,
		fields:       fields,
	}, nil
}

// Validate parses a raw provider response against the compiled schema and
// coerces declared custom fields into their target types.
func (s *Schema) Validate(raw []byte) (domain.ExtractedRecord, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return domain.ExtractedRecord{}, domain.WrapError(domain.ErrInvalidInput, "parse extraction response", err)
	}
	if err := s.compiled.Validate(value); err != nil {
		return domain.ExtractedRecord{}, domain.WrapError(domain.ErrInvalidInput, "validate extraction response", err)
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return domain.ExtractedRecord{}, domain.WrapError(domain.ErrInvalidInput, "validate extraction response",
			fmt.Errorf("expected object, got %T", value))
	}

	record := domain.ExtractedRecord{
		InvoiceNumber: stringField(obj, "invoice_number"),
		InvoiceDate:   stringField(obj, "invoice_date"),
		TotalAmount:   numberField(obj, "total_amount"),
		Currency:      stringField(obj, "currency"),
		LineItems:     lineItemsField(obj),
	}

	if len(s.fields) > 0 {
		custom := make(map[string]any, len(s.fields))
		for _, field := range s.fields {
			coerced, err := coerceField(field, obj[field.Name])
			if err != nil {
				return domain.ExtractedRecord{}, err
			}
			if coerced != nil {
				custom[field.Name] = coerced
			}
		}
		if len(custom) > 0 {
			record.CustomFields = custom
		}
	}

	return record, nil
}

func buildSchemaDocument(fields []domain.TemplateField) map[string]any {
	props := map[string]any{
		"invoice_number": map[string]any{"type": []string{"string", "null"}},
		"invoice_date":   map[string]any{"type": []string{"string", "null"}, "pattern": `^\d{4}-\d{2}-\d{2}`},
		"total_amount":   map[string]any{"type": []string{"number", "null"}},
		"currency":       map[string]any{"type": []string{"string", "null"}, "pattern": `^[A-Za-z]{3}$`},
		"line_items": map[string]any{
			"type": []string{"array", "null"},
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{"type": []string{"string", "null"}},
					"quantity":    map[string]any{"type": []string{"number", "null"}},
					"unit_price":  map[string]any{"type": []string{"number", "null"}},
					"amount":      map[string]any{"type": []string{"number", "null"}},
				},
			},
		},
	}
	required := []string{}

	for _, field := range fields {
		props[field.Name] = customFieldProp(field)
		if field.Required {
			required = append(required, field.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func customFieldProp(field domain.TemplateField) map[string]any {
	var types []string
	switch field.Type {
	case domain.FieldTypeNumber:
		// models frequently emit numbers as strings; coercion narrows later
		types = []string{"number", "string"}
	case domain.FieldTypeBoolean:
		types = []string{"boolean", "string"}
	default:
		types = []string{"string"}
	}
	// "required" in JSON Schema only checks key presence, and the prompt tells
	// the model to emit null for anything it cannot find. A required field
	// must also exclude null from its type union or an explicit null slips
	// through.
	if !field.Required {
		types = append(types, "null")
	}
	return map[string]any{"type": types}
}

func buildFieldInstructions(fields []domain.TemplateField) string {
	if len(fields) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Additionally extract the following vendor-specific fields as top-level JSON keys:\n")
	for _, field := range fields {
		b.WriteString("- ")
		b.WriteString(field.Name)
		b.WriteString(" (")
		b.WriteString(typeHint(field.Type))
		if field.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if desc := strings.TrimSpace(field.Description); desc != "" {
			b.WriteString(": ")
			b.WriteString(desc)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func typeHint(t domain.FieldType) string {
	switch t {
	case domain.FieldTypeNumber:
		return "number"
	case domain.FieldTypeBoolean:
		return "true or false"
	case domain.FieldTypeDate:
		return "ISO-8601 date, YYYY-MM-DD"
	default:
		return "string"
	}
}
