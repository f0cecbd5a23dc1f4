package domain

import "time"

// FieldType is the declared type of a vendor-specific custom field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeDate:
		return true
	default:
		return false
	}
}

type TemplateField struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// RuleKind enumerates the vendor-declared post-extraction checks.
type RuleKind string

const (
	RuleMin      RuleKind = "min"
	RuleMax      RuleKind = "max"
	RulePattern  RuleKind = "pattern"
	RuleRequired RuleKind = "required"
	RuleLength   RuleKind = "length"
)

type ValidationRule struct {
	Field   string   `json:"field"`
	Kind    RuleKind `json:"kind"`
	Value   any      `json:"value,omitempty"`
	Message string   `json:"message,omitempty"`
}

// VendorTemplate declares how documents of one vendor are extracted and
// validated. At most one template per vendor is active at a time.
type VendorTemplate struct {
	ID             string            `json:"id"`
	VendorID       string            `json:"vendor_id"`
	Name           string            `json:"name"`
	IsActive       bool              `json:"is_active"`
	Fields         []TemplateField   `json:"fields,omitempty"`
	FieldMappings  map[string]string `json:"field_mappings,omitempty"`
	Rules          []ValidationRule  `json:"rules,omitempty"`
	PromptFragment string            `json:"prompt_fragment,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
