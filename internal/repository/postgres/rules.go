// Package postgres implements the repository interfaces against PostgreSQL
// using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stampworks/sigforge/internal/domain"
)

// ErrRuleNotFound is returned when a rule is absent or belongs to another
// organization.
var ErrRuleNotFound = errors.New("signature rule not found")

// RuleRepo manages signature rules. Implements resolution.Rules plus the
// admin CRUD the API needs.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `id, organization_id, template_id, name, priority, is_active,
       sender_condition, sender_user_ids, sender_departments,
       email_type, recipient_condition, active_from, active_until,
       COALESCE(subject_contains,''), COALESCE(subject_not_contains,''),
       created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*domain.SignatureRule, error) {
	r := &domain.SignatureRule{}
	err := row.Scan(
		&r.ID, &r.OrganizationID, &r.TemplateID, &r.Name, &r.Priority, &r.IsActive,
		&r.SenderCondition, pq.Array(&r.SenderUserIDs), pq.Array(&r.SenderDepartments),
		&r.EmailType, &r.RecipientCondition, &r.ActiveFrom, &r.ActiveUntil,
		&r.SubjectContains, &r.SubjectNotContains,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetActiveRules returns the organization's active rules. Ordering is left
// to the rule engine.
func (repo *RuleRepo) GetActiveRules(ctx context.Context, orgID string) ([]domain.SignatureRule, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM signature_rules
		WHERE organization_id = $1 AND is_active = true
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("get active rules: %w", err)
	}
	defer rows.Close()

	var out []domain.SignatureRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// List returns every rule of an organization, active or not, highest
// priority first for the admin screen.
func (repo *RuleRepo) List(ctx context.Context, orgID string) ([]domain.SignatureRule, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM signature_rules
		WHERE organization_id = $1
		ORDER BY priority DESC, id ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.SignatureRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Get returns one rule scoped to its organization.
func (repo *RuleRepo) Get(ctx context.Context, orgID, id string) (*domain.SignatureRule, error) {
	r, err := scanRule(repo.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM signature_rules
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return r, nil
}

// Create inserts a new rule and returns its ID.
func (repo *RuleRepo) Create(ctx context.Context, r *domain.SignatureRule) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO signature_rules
			(id, organization_id, template_id, name, priority, is_active,
			 sender_condition, sender_user_ids, sender_departments,
			 email_type, recipient_condition, active_from, active_until,
			 subject_contains, subject_not_contains, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
	`, r.ID, r.OrganizationID, r.TemplateID, r.Name, r.Priority, r.IsActive,
		r.SenderCondition, pq.Array(r.SenderUserIDs), pq.Array(r.SenderDepartments),
		r.EmailType, r.RecipientCondition, r.ActiveFrom, r.ActiveUntil,
		r.SubjectContains, r.SubjectNotContains)
	if err != nil {
		return "", fmt.Errorf("create rule: %w", err)
	}
	return r.ID, nil
}

// Update replaces a rule's mutable fields.
func (repo *RuleRepo) Update(ctx context.Context, orgID string, r *domain.SignatureRule) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE signature_rules
		SET template_id = $1, name = $2, priority = $3, is_active = $4,
		    sender_condition = $5, sender_user_ids = $6, sender_departments = $7,
		    email_type = $8, recipient_condition = $9,
		    active_from = $10, active_until = $11,
		    subject_contains = $12, subject_not_contains = $13,
		    updated_at = NOW()
		WHERE id = $14 AND organization_id = $15
	`, r.TemplateID, r.Name, r.Priority, r.IsActive,
		r.SenderCondition, pq.Array(r.SenderUserIDs), pq.Array(r.SenderDepartments),
		r.EmailType, r.RecipientCondition, r.ActiveFrom, r.ActiveUntil,
		r.SubjectContains, r.SubjectNotContains, r.ID, orgID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule permanently. Soft disabling goes through Update's
// is_active instead.
func (repo *RuleRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := repo.db.ExecContext(ctx, `
		DELETE FROM signature_rules WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}
