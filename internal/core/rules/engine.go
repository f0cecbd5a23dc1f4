// Package rules evaluates vendor-declared validation rules against an
// extracted record. Evaluation is pure; one or more violations route the
// document to validation_failed rather than failed.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vgrishin/docextract/internal/core/domain"
)

type Violation struct {
	Field   string          `json:"field"`
	Kind    domain.RuleKind `json:"kind"`
	Message string          `json:"message"`
}

// Evaluate runs the ordered rule list over the record and returns every
// violation found. Rules that do not apply to the field's actual type (e.g. a
// numeric bound on a string) are skipped, not failed.
func Evaluate(record domain.ExtractedRecord, ruleList []domain.ValidationRule) []Violation {
	fields := flatten(record)

	var violations []Violation
	for _, rule := range ruleList {
		if v := apply(rule, fields[rule.Field]); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

// Messages renders violations for persistence on the document.
func Messages(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return out
}

func apply(rule domain.ValidationRule, value any) *Violation {
	switch rule.Kind {
	case domain.RuleRequired:
		return applyRequired(rule, value)
	case domain.RuleMin:
		return applyBound(rule, value, func(v, bound float64) bool { return v < bound }, "must be at least")
	case domain.RuleMax:
		return applyBound(rule, value, func(v, bound float64) bool { return v > bound }, "must be at most")
	case domain.RulePattern:
		return applyPattern(rule, value)
	case domain.RuleLength:
		return applyLength(rule, value)
	default:
		return nil
	}
}

func applyRequired(rule domain.ValidationRule, value any) *Violation {
	if value == nil {
		return violation(rule, "is required")
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return violation(rule, "is required")
	}
	return nil
}

func applyBound(rule domain.ValidationRule, value any, failed func(v, bound float64) bool, verb string) *Violation {
	number, ok := asNumber(value)
	if !ok {
		return nil // non-numeric field: rule inapplicable
	}
	bound, ok := asNumber(rule.Value)
	if !ok {
		return nil
	}
	if failed(number, bound) {
		return violation(rule, fmt.Sprintf("%s %v", verb, rule.Value))
	}
	return nil
}

func applyPattern(rule domain.ValidationRule, value any) *Violation {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	pattern, ok := rule.Value.(string)
	if !ok {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil // broken vendor pattern must not fail the document
	}
	if !re.MatchString(s) {
		return violation(rule, fmt.Sprintf("does not match pattern %s", pattern))
	}
	return nil
}

func applyLength(rule domain.ValidationRule, value any) *Violation {
	length, ok := lengthOf(value)
	if !ok {
		return nil
	}
	bound, ok := asNumber(rule.Value)
	if !ok {
		return nil
	}
	if float64(length) != bound {
		return violation(rule, fmt.Sprintf("must have length %v", rule.Value))
	}
	return nil
}

func violation(rule domain.ValidationRule, fallback string) *Violation {
	message := strings.TrimSpace(rule.Message)
	if message == "" {
		message = fallback
	}
	return &Violation{Field: rule.Field, Kind: rule.Kind, Message: message}
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func lengthOf(value any) (int, bool) {
	switch v := value.(type) {
	case string:
		return len(v), true
	case []any:
		return len(v), true
	case []domain.LineItem:
		return len(v), true
	default:
		return 0, false
	}
}

// flatten exposes baseline and custom fields under the names rules refer to.
func flatten(record domain.ExtractedRecord) map[string]any {
	fields := map[string]any{}
	if record.InvoiceNumber != nil {
		fields["invoice_number"] = *record.InvoiceNumber
	}
	if record.InvoiceDate != nil {
		fields["invoice_date"] = *record.InvoiceDate
	}
	if record.TotalAmount != nil {
		fields["total_amount"] = *record.TotalAmount
	}
	if record.Currency != nil {
		fields["currency"] = *record.Currency
	}
	if len(record.LineItems) > 0 {
		fields["line_items"] = record.LineItems
	}
	for name, value := range record.CustomFields {
		fields[name] = value
	}
	return fields
}
