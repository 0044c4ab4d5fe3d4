package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/service/resolution"
)

// TemplateRepo implements resolution.Templates. Template blocks are stored
// as a JSONB column.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

func scanTemplate(row interface{ Scan(...interface{}) error }) (*domain.SignatureTemplate, error) {
	t := &domain.SignatureTemplate{}
	var blocksJSON []byte
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &blocksJSON, &t.IsDefault, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(blocksJSON) > 0 {
		if err := json.Unmarshal(blocksJSON, &t.Blocks); err != nil {
			return nil, fmt.Errorf("decode blocks: %w", err)
		}
	}
	return t, nil
}

func (r *TemplateRepo) GetTemplate(ctx context.Context, orgID, templateID string) (*domain.SignatureTemplate, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, blocks, is_default, created_at, updated_at
		FROM signature_templates
		WHERE id = $1 AND organization_id = $2
	`, templateID, orgID))
	if err == sql.ErrNoRows {
		return nil, resolution.ErrNoTemplate
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) GetDefaultTemplate(ctx context.Context, orgID string) (*domain.SignatureTemplate, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, blocks, is_default, created_at, updated_at
		FROM signature_templates
		WHERE organization_id = $1 AND is_default = true
		ORDER BY updated_at DESC
		LIMIT 1
	`, orgID))
	if err == sql.ErrNoRows {
		return nil, resolution.ErrNoTemplate
	}
	if err != nil {
		return nil, fmt.Errorf("get default template: %w", err)
	}
	return t, nil
}
