package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/service/deployment"
)

// DeploymentRepo implements deployment.Repository, plus the stuck-run
// queries the reaper worker needs.
type DeploymentRepo struct{ db *sql.DB }

// NewDeploymentRepo creates a Postgres-backed deployment repository.
func NewDeploymentRepo(db *sql.DB) *DeploymentRepo { return &DeploymentRepo{db: db} }

func (r *DeploymentRepo) CreateDeployment(ctx context.Context, d *domain.Deployment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signature_deployments
			(id, organization_id, template_id, target_mode, use_rules,
			 status, total_users, successful_count, failed_count, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8)
	`, d.ID, d.OrganizationID, d.TemplateID, d.TargetMode, d.UseRules,
		d.Status, d.TotalUsers, d.StartedAt)
	if err != nil {
		return fmt.Errorf("create deployment: %w", err)
	}
	return nil
}

func (r *DeploymentRepo) FinalizeDeployment(ctx context.Context, id string, status domain.DeploymentStatus, successful, failed int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE signature_deployments
		SET status = $1, successful_count = $2, failed_count = $3, finished_at = NOW()
		WHERE id = $4
	`, status, successful, failed, id)
	if err != nil {
		return fmt.Errorf("finalize deployment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return deployment.ErrDeploymentNotFound
	}
	return nil
}

func (r *DeploymentRepo) RecordHistory(ctx context.Context, h *domain.UserDeploymentHistory) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_deployment_history
			(id, deployment_id, user_id, template_id, status, error_message, deployed_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7)
	`, h.ID, h.DeploymentID, h.UserID, h.TemplateID, h.Status, h.ErrorMessage, h.DeployedAt)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

func (r *DeploymentRepo) GetDeployment(ctx context.Context, orgID, id string) (*domain.Deployment, error) {
	d := &domain.Deployment{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, template_id, target_mode, use_rules,
		       status, total_users, successful_count, failed_count,
		       started_at, finished_at
		FROM signature_deployments
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(
		&d.ID, &d.OrganizationID, &d.TemplateID, &d.TargetMode, &d.UseRules,
		&d.Status, &d.TotalUsers, &d.Successful, &d.Failed,
		&d.StartedAt, &d.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, deployment.ErrDeploymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", err)
	}
	return d, nil
}

func (r *DeploymentRepo) ListHistory(ctx context.Context, orgID, deploymentID string) ([]domain.UserDeploymentHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.deployment_id, h.user_id, h.template_id, h.status,
		       COALESCE(h.error_message,''), h.deployed_at
		FROM user_deployment_history h
		JOIN signature_deployments d ON d.id = h.deployment_id
		WHERE h.deployment_id = $1 AND d.organization_id = $2
		ORDER BY h.deployed_at ASC, h.id ASC
	`, deploymentID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []domain.UserDeploymentHistory
	for rows.Next() {
		var h domain.UserDeploymentHistory
		if err := rows.Scan(&h.ID, &h.DeploymentID, &h.UserID, &h.TemplateID,
			&h.Status, &h.ErrorMessage, &h.DeployedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListStuckRunning returns deployments still marked running that started
// before the cutoff. Used by the reaper after a server crash mid-run.
func (r *DeploymentRepo) ListStuckRunning(ctx context.Context, cutoff time.Time) ([]domain.Deployment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, template_id, target_mode, use_rules,
		       status, total_users, successful_count, failed_count,
		       started_at, finished_at
		FROM signature_deployments
		WHERE status = $1 AND started_at < $2
	`, domain.DeploymentRunning, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stuck deployments: %w", err)
	}
	defer rows.Close()

	var out []domain.Deployment
	for rows.Next() {
		var d domain.Deployment
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.TemplateID, &d.TargetMode, &d.UseRules,
			&d.Status, &d.TotalUsers, &d.Successful, &d.Failed,
			&d.StartedAt, &d.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountHistoryOutcomes tallies the recorded per-target outcomes of one
// deployment. The reaper reconstructs final counters from this.
func (r *DeploymentRepo) CountHistoryOutcomes(ctx context.Context, deploymentID string) (successful, failed int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = $2),
		       COUNT(*) FILTER (WHERE status = $3)
		FROM user_deployment_history
		WHERE deployment_id = $1
	`, deploymentID, domain.HistoryCompleted, domain.HistoryFailed).Scan(&successful, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("count history outcomes: %w", err)
	}
	return successful, failed, nil
}
