package deployment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/pkg/logger"
	"github.com/stampworks/sigforge/internal/service/resolution"
)

// Config tunes orchestrator behavior.
type Config struct {
	// Concurrency is the number of targets processed in parallel.
	// 1 processes sequentially, which also guarantees history row order.
	Concurrency int

	// WriteTimeout bounds each provider write so one unresponsive mailbox
	// cannot stall the whole batch.
	WriteTimeout time.Duration
}

// Request describes one deployment to start.
type Request struct {
	TemplateID  string                       `json:"template_id"`
	TargetMode  domain.TargetMode            `json:"target_mode"`
	SelectedIDs []string                     `json:"selected_ids"`
	UseRules    bool                         `json:"use_rules"`
	Email       resolution.ContextOverrides  `json:"-"`

	// Caller identity. For TargetMe deployments issued before a directory
	// record exists, CallerEmail lets the signature still be written; such
	// transient targets get no per-user history row.
	CallerAuthID string `json:"-"`
	CallerEmail  string `json:"-"`
	CallerName   string `json:"-"`
}

// Summary is what the caller gets back: always accurate counts, never a
// single pass/fail bit.
type Summary struct {
	DeploymentID string                  `json:"deployment_id"`
	Status       domain.DeploymentStatus `json:"status"`
	Total        int                     `json:"total"`
	Successful   int                     `json:"successful"`
	Failed       int                     `json:"failed"`
}

// Service orchestrates signature deployments. Safe for concurrent use;
// concurrent deployments are independent aggregates and never share state.
type Service struct {
	repo      Repository
	directory resolution.Directory
	templates resolution.Templates
	resolver  TemplateResolver
	renderer  Renderer
	writer    SignatureWriter
	audit     AuditSink
	progress  ProgressTracker
	cfg       Config
}

// NewService creates a deployment orchestrator. audit and progress may be
// nil; everything else is required.
func NewService(repo Repository, directory resolution.Directory, templates resolution.Templates,
	resolver TemplateResolver, renderer Renderer, writer SignatureWriter, cfg Config) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	return &Service{
		repo:      repo,
		directory: directory,
		templates: templates,
		resolver:  resolver,
		renderer:  renderer,
		writer:    writer,
		cfg:       cfg,
	}
}

// SetAuditSink attaches the audit collaborator.
func (s *Service) SetAuditSink(sink AuditSink) { s.audit = sink }

// SetProgressTracker attaches the live progress collaborator.
func (s *Service) SetProgressTracker(p ProgressTracker) { s.progress = p }

// targetResult is one target's outcome, produced by a worker and consumed by
// the aggregating loop that owns all counters.
type targetResult struct {
	target     domain.DeploymentTarget
	templateID string // template actually applied
	err        error  // nil on success
}

// StartDeployment validates the request, expands targets, fans out the
// render-and-write work, and finalizes the aggregate. It runs to completion
// over its target list; per-target failures are recorded and never abort the
// batch.
func (s *Service) StartDeployment(ctx context.Context, orgID string, req Request) (*Summary, error) {
	if req.TemplateID == "" {
		return nil, ErrMissingTemplateID
	}

	// Tenant isolation: the requested template must belong to the caller's
	// organization. Never bypassed.
	requested, err := s.templates.GetTemplate(ctx, orgID, req.TemplateID)
	if err != nil {
		if errors.Is(err, resolution.ErrNoTemplate) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("load template: %w", err)
	}

	targets, err := s.expandTargets(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	dep := &domain.Deployment{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		TemplateID:     req.TemplateID,
		TargetMode:     req.TargetMode,
		UseRules:       req.UseRules,
		Status:         domain.DeploymentRunning,
		TotalUsers:     len(targets),
		StartedAt:      time.Now().UTC(),
	}
	if err := s.repo.CreateDeployment(ctx, dep); err != nil {
		// Persistence trouble is not a reason to leave mailboxes without
		// their signatures; keep going and try again at finalize.
		logger.Error("failed to persist deployment record",
			"deployment_id", dep.ID, "org_id", orgID, "error", err.Error())
	}

	if s.progress != nil {
		s.progress.Init(ctx, dep.ID, len(targets))
	}

	successful, failed := s.run(ctx, orgID, dep.ID, requested, targets, req)

	status := domain.DeploymentCompleted
	if successful == 0 {
		// Only a total wipeout counts as failed; partial success means
		// most users did receive their signature.
		status = domain.DeploymentFailed
	}
	if err := s.repo.FinalizeDeployment(ctx, dep.ID, status, successful, failed); err != nil {
		logger.Error("failed to finalize deployment record",
			"deployment_id", dep.ID, "org_id", orgID, "error", err.Error())
	}
	if s.progress != nil {
		s.progress.Finish(ctx, dep.ID, status)
	}
	s.recordAudit(orgID, req, dep.ID, len(targets), successful, failed)

	log.Printf("[deployment.Service] Deployment %s: %d/%d targets succeeded (status=%s)",
		dep.ID, successful, len(targets), status)

	return &Summary{
		DeploymentID: dep.ID,
		Status:       status,
		Total:        len(targets),
		Successful:   successful,
		Failed:       failed,
	}, nil
}

// run fans the targets out over a bounded worker pool and aggregates the
// results in a single loop that owns the counters, so no increment is ever
// shared between goroutines.
func (s *Service) run(ctx context.Context, orgID, deploymentID string,
	requested *domain.SignatureTemplate, targets []domain.DeploymentTarget, req Request) (successful, failed int) {

	workers := s.cfg.Concurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	jobs := make(chan domain.DeploymentTarget)
	results := make(chan targetResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				results <- s.processTarget(ctx, orgID, requested, target, req)
			}
		}()
	}
	go func() {
		for _, target := range targets {
			jobs <- target
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err == nil {
			successful++
			if s.progress != nil {
				s.progress.Success(ctx, deploymentID)
			}
		} else {
			failed++
			if s.progress != nil {
				s.progress.Failure(ctx, deploymentID)
			}
			logger.Warn("signature deployment target failed",
				"deployment_id", deploymentID, "email", res.target.Email, "error", res.err.Error())
		}
		s.recordHistory(ctx, deploymentID, res)
	}
	return successful, failed
}

// processTarget resolves, renders, and writes one target's signature. Any
// error is that target's failure and nothing more.
func (s *Service) processTarget(ctx context.Context, orgID string,
	requested *domain.SignatureTemplate, target domain.DeploymentTarget, req Request) targetResult {

	tpl := requested
	if req.UseRules && target.UserID != "" {
		tpl = s.resolveForTarget(ctx, orgID, requested, target, req.Email)
	}

	html, err := s.renderer.Render(tpl, target)
	if err != nil {
		return targetResult{target: target, templateID: tpl.ID, err: fmt.Errorf("render: %w", err)}
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.writer.WriteSignature(writeCtx, target.Email, html); err != nil {
		return targetResult{target: target, templateID: tpl.ID, err: fmt.Errorf("provider write: %w", err)}
	}
	return targetResult{target: target, templateID: tpl.ID}
}

// resolveForTarget applies rule-based resolution for one target. Any trouble
// here (resolution error, no match, resolved template missing) silently
// falls back to the originally requested template for this target only.
func (s *Service) resolveForTarget(ctx context.Context, orgID string,
	requested *domain.SignatureTemplate, target domain.DeploymentTarget, email resolution.ContextOverrides) *domain.SignatureTemplate {

	resolvedID, err := s.resolver.ResolveTemplateForUser(ctx, orgID, target.UserID, email)
	if err != nil || resolvedID == "" || resolvedID == requested.ID {
		return requested
	}
	resolved, err := s.templates.GetTemplate(ctx, orgID, resolvedID)
	if err != nil {
		return requested
	}
	return resolved
}

// recordHistory writes the per-target outcome row. Transient targets with no
// directory record get no row. Row write failures are logged, never fatal.
func (s *Service) recordHistory(ctx context.Context, deploymentID string, res targetResult) {
	if res.target.UserID == "" {
		return
	}
	h := &domain.UserDeploymentHistory{
		ID:           uuid.New().String(),
		DeploymentID: deploymentID,
		UserID:       res.target.UserID,
		TemplateID:   res.templateID,
		Status:       domain.HistoryCompleted,
		DeployedAt:   time.Now().UTC(),
	}
	if res.err != nil {
		h.Status = domain.HistoryFailed
		h.ErrorMessage = res.err.Error()
	}
	if err := s.repo.RecordHistory(ctx, h); err != nil {
		logger.Error("failed to record deployment history row",
			"deployment_id", deploymentID, "user_id", res.target.UserID, "error", err.Error())
	}
}

// expandTargets turns the request's target mode into concrete mailboxes.
func (s *Service) expandTargets(ctx context.Context, orgID string, req Request) ([]domain.DeploymentTarget, error) {
	switch req.TargetMode {
	case domain.TargetMe:
		user, err := s.directory.GetUserByAuthID(ctx, req.CallerAuthID)
		if errors.Is(err, resolution.ErrUserNotFound) {
			if req.CallerEmail == "" {
				return nil, ErrNoTargets
			}
			// No directory record yet: still deploy to the caller's own
			// mailbox, just without per-user history.
			return []domain.DeploymentTarget{{
				Email:       req.CallerEmail,
				DisplayName: req.CallerName,
				Profile:     map[string]string{},
			}}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("expand me: %w", err)
		}
		return []domain.DeploymentTarget{userToTarget(*user)}, nil

	case domain.TargetSelected:
		if len(req.SelectedIDs) == 0 {
			return nil, ErrNoTargets
		}
		users, err := s.directory.GetUsersByOrg(ctx, orgID, req.SelectedIDs)
		if err != nil {
			return nil, fmt.Errorf("expand selected: %w", err)
		}
		return usersToTargets(users), nil

	case domain.TargetAll:
		users, err := s.directory.GetUsersByOrg(ctx, orgID, nil)
		if err != nil {
			return nil, fmt.Errorf("expand all: %w", err)
		}
		return usersToTargets(users), nil

	default:
		return nil, ErrInvalidTargetMode
	}
}

func userToTarget(u domain.User) domain.DeploymentTarget {
	profile := make(map[string]string, len(u.Profile)+3)
	for k, v := range u.Profile {
		profile[k] = v
	}
	if u.Title != "" {
		profile["title"] = u.Title
	}
	if u.Phone != "" {
		profile["phone"] = u.Phone
	}
	if u.Department != "" {
		profile["department"] = u.Department
	}
	return domain.DeploymentTarget{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Profile:     profile,
	}
}

func usersToTargets(users []domain.User) []domain.DeploymentTarget {
	out := make([]domain.DeploymentTarget, 0, len(users))
	for _, u := range users {
		out = append(out, userToTarget(u))
	}
	return out
}

// recordAudit emits the run summary to the audit sink, fire-and-forget.
func (s *Service) recordAudit(orgID string, req Request, deploymentID string, total, successful, failed int) {
	if s.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.audit.Record(ctx, orgID, req.CallerAuthID, "signature.deployment", map[string]interface{}{
			"deployment_id": deploymentID,
			"target_mode":   string(req.TargetMode),
			"use_rules":     req.UseRules,
			"total":         total,
			"successful":    successful,
			"failed":        failed,
		})
		if err != nil {
			log.Printf("[deployment.Service] audit record failed: %v", err)
		}
	}()
}

// GetDeployment returns the aggregate record for status polling.
func (s *Service) GetDeployment(ctx context.Context, orgID, id string) (*domain.Deployment, error) {
	return s.repo.GetDeployment(ctx, orgID, id)
}

// GetHistory returns the per-target outcome rows of a deployment.
func (s *Service) GetHistory(ctx context.Context, orgID, deploymentID string) ([]domain.UserDeploymentHistory, error) {
	if _, err := s.repo.GetDeployment(ctx, orgID, deploymentID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, orgID, deploymentID)
}
