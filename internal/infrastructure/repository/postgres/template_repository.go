package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vgrishin/docextract/internal/core/domain"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `
id, vendor_id, name, is_active, fields, field_mappings, rules, prompt_fragment, created_at, updated_at`

func (r *TemplateRepository) Create(ctx context.Context, tpl *domain.VendorTemplate) error {
	fieldsJSON, err := json.Marshal(tpl.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	mappingsJSON, err := json.Marshal(tpl.FieldMappings)
	if err != nil {
		return fmt.Errorf("marshal field mappings: %w", err)
	}
	rulesJSON, err := json.Marshal(tpl.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO vendor_templates (`+templateColumns+`
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, tpl.ID, tpl.VendorID, tpl.Name, tpl.IsActive, fieldsJSON, mappingsJSON, rulesJSON, tpl.PromptFragment, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert vendor template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*domain.VendorTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+templateColumns+`
FROM vendor_templates
WHERE id = $1
`, id)
	return scanTemplate(row, id)
}

func (r *TemplateRepository) GetActiveByVendor(ctx context.Context, vendorID string) (*domain.VendorTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+templateColumns+`
FROM vendor_templates
WHERE vendor_id = $1 AND is_active
`, vendorID)
	return scanTemplate(row, vendorID)
}

// Activate switches the vendor's active template. Deactivating the siblings
// and activating the target happen in one transaction so the partial unique
// index never sees two active rows.
func (r *TemplateRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var vendorID string
	err = tx.QueryRowContext(ctx, `SELECT vendor_id FROM vendor_templates WHERE id = $1`, id).Scan(&vendorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("activate template %s: %w", id, domain.ErrTemplateNotFound)
		}
		return fmt.Errorf("resolve template vendor: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE vendor_templates
SET is_active = FALSE, updated_at = $2
WHERE vendor_id = $1 AND is_active AND id <> $3
`, vendorID, now, id); err != nil {
		return fmt.Errorf("deactivate sibling templates: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE vendor_templates
SET is_active = TRUE, updated_at = $2
WHERE id = $1
`, id, now); err != nil {
		return fmt.Errorf("activate template: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}
	return nil
}

func scanTemplate(row rowScanner, key string) (*domain.VendorTemplate, error) {
	var (
		tpl         domain.VendorTemplate
		fieldsRaw   []byte
		mappingsRaw []byte
		rulesRaw    []byte
	)
	err := row.Scan(
		&tpl.ID, &tpl.VendorID, &tpl.Name, &tpl.IsActive,
		&fieldsRaw, &mappingsRaw, &rulesRaw, &tpl.PromptFragment,
		&tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", key, domain.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("scan vendor template: %w", err)
	}
	if err := json.Unmarshal(fieldsRaw, &tpl.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(mappingsRaw, &tpl.FieldMappings); err != nil {
		return nil, fmt.Errorf("unmarshal field mappings: %w", err)
	}
	if err := json.Unmarshal(rulesRaw, &tpl.Rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	return &tpl, nil
}
