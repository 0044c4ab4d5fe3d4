package deployment

import (
	"context"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/service/resolution"
)

// Repository is the data access contract for deployment aggregates and their
// per-target history. Implementations must be safe for concurrent use.
type Repository interface {
	// CreateDeployment inserts a new deployment in running state.
	CreateDeployment(ctx context.Context, d *domain.Deployment) error

	// FinalizeDeployment writes the final status and counters. Called
	// exactly once per deployment, after every target has been attempted.
	FinalizeDeployment(ctx context.Context, id string, status domain.DeploymentStatus, successful, failed int) error

	// RecordHistory inserts one immutable per-target outcome row.
	RecordHistory(ctx context.Context, h *domain.UserDeploymentHistory) error

	// GetDeployment returns a deployment scoped to its organization.
	// Returns ErrDeploymentNotFound if absent.
	GetDeployment(ctx context.Context, orgID, id string) (*domain.Deployment, error)

	// ListHistory returns the per-target rows of a deployment, oldest first.
	ListHistory(ctx context.Context, orgID, deploymentID string) ([]domain.UserDeploymentHistory, error)
}

// TemplateResolver resolves which template applies to one user, given the
// message context of the deployment. Implemented by resolution.Service.
type TemplateResolver interface {
	ResolveTemplateForUser(ctx context.Context, orgID, userID string, overrides resolution.ContextOverrides) (string, error)
}

// Renderer renders one template for one target. Implemented by
// render.Renderer.
type Renderer interface {
	Render(tpl *domain.SignatureTemplate, target domain.DeploymentTarget) (string, error)
}

// SignatureWriter pushes rendered HTML into a mailbox at the mail provider.
// Implementations live in internal/provider.
type SignatureWriter interface {
	WriteSignature(ctx context.Context, mailbox, html string) error
}

// AuditSink records a summary of actions taken. Sink failures must never
// fail a deployment; the service logs and moves on.
type AuditSink interface {
	Record(ctx context.Context, orgID, actorID, action string, metadata map[string]interface{}) error
}

// ProgressTracker publishes live per-deployment counters so callers can poll
// progress before finalization. Implementations swallow their own errors.
// Optional: the service tolerates a nil tracker.
type ProgressTracker interface {
	Init(ctx context.Context, deploymentID string, total int)
	Success(ctx context.Context, deploymentID string)
	Failure(ctx context.Context, deploymentID string)
	Finish(ctx context.Context, deploymentID string, status domain.DeploymentStatus)
}
