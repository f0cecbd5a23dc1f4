package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vgrishin/docextract/internal/core/domain"
)

// Accepted spellings for template date fields; everything is normalized to
// YYYY-MM-DD.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02.01.2006",
	"02/01/2006",
	"January 2, 2006",
	"2 January 2006",
}

// coerceField narrows a raw JSON value into the declared field type. A nil
// value for an optional field stays nil; the schema has already rejected nil
// for required fields.
func coerceField(field domain.TemplateField, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case domain.FieldTypeString:
		return fmt.Sprintf("%v", value), nil
	case domain.FieldTypeNumber:
		return coerceNumber(field.Name, value)
	case domain.FieldTypeBoolean:
		return coerceBoolean(field.Name, value)
	case domain.FieldTypeDate:
		return coerceDate(field.Name, value)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "coerce field",
			fmt.Errorf("field %q: unknown type %q", field.Name, field.Type))
	}
}

func coerceNumber(name string, value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "coerce field",
				fmt.Errorf("field %q: %q is not a number", name, v))
		}
		return n, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "coerce field",
			fmt.Errorf("field %q: cannot convert %T to number", name, value))
	}
}

func coerceBoolean(name string, value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "coerce field",
				fmt.Errorf("field %q: %q is not a boolean", name, v))
		}
		return parsed, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "coerce field",
			fmt.Errorf("field %q: cannot convert %T to boolean", name, value))
	}
}

func coerceDate(name string, value any) (any, error) {
	raw, ok := value.(string)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "coerce field",
			fmt.Errorf("field %q: cannot convert %T to date", name, value))
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format("2006-01-02"), nil
		}
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "coerce field",
		fmt.Errorf("field %q: %q is not a recognizable date", name, raw))
}

func stringField(obj map[string]any, key string) *string {
	v, ok := obj[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func numberField(obj map[string]any, key string) *float64 {
	v, ok := obj[key].(float64)
	if !ok {
		return nil
	}
	return &v
}

func lineItemsField(obj map[string]any) []domain.LineItem {
	rawItems, ok := obj["line_items"].([]any)
	if !ok || len(rawItems) == 0 {
		return nil
	}

	items := make([]domain.LineItem, 0, len(rawItems))
	for _, rawItem := range rawItems {
		entry, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		item := domain.LineItem{
			Quantity:  numberField(entry, "quantity"),
			UnitPrice: numberField(entry, "unit_price"),
			Amount:    numberField(entry, "amount"),
		}
		if desc := stringField(entry, "description"); desc != nil {
			item.Description = *desc
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}
	return items
}
