// Package api exposes the HTTP surface: deployment orchestration, dry-run
// resolution, and rule management. Authentication is handled upstream; caller
// identity arrives in headers set by the gateway.
package api

import (
	"context"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/service/deployment"
	"github.com/stampworks/sigforge/internal/service/resolution"
	"github.com/stampworks/sigforge/internal/status"
)

// DeploymentService is the orchestrator surface the handlers need.
type DeploymentService interface {
	StartDeployment(ctx context.Context, orgID string, req deployment.Request) (*deployment.Summary, error)
	GetDeployment(ctx context.Context, orgID, id string) (*domain.Deployment, error)
	GetHistory(ctx context.Context, orgID, deploymentID string) ([]domain.UserDeploymentHistory, error)
}

// ResolutionService answers which template applies to a user.
type ResolutionService interface {
	ResolveTemplateForUser(ctx context.Context, orgID, userID string, o resolution.ContextOverrides) (string, error)
	ResolveWithFallback(ctx context.Context, orgID, userID string, o resolution.ContextOverrides) (string, error)
}

// RuleStore persists signature rules.
type RuleStore interface {
	List(ctx context.Context, orgID string) ([]domain.SignatureRule, error)
	Get(ctx context.Context, orgID, id string) (*domain.SignatureRule, error)
	Create(ctx context.Context, r *domain.SignatureRule) (string, error)
	Update(ctx context.Context, orgID string, r *domain.SignatureRule) error
	Delete(ctx context.Context, orgID, id string) error
}

// ProgressReader reads live deployment progress. May be nil when Redis is
// not configured; the handlers then serve the persisted counters only.
type ProgressReader interface {
	Get(ctx context.Context, deploymentID string) (status.Progress, bool, error)
}

// Server holds the handler dependencies.
type Server struct {
	deployments DeploymentService
	resolution  ResolutionService
	rules       RuleStore
	progress    ProgressReader
}

// NewServer wires the HTTP layer. progress may be nil.
func NewServer(d DeploymentService, r ResolutionService, rules RuleStore, progress ProgressReader) *Server {
	return &Server{
		deployments: d,
		resolution:  r,
		rules:       rules,
		progress:    progress,
	}
}
