package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/pkg/httputil"
	"github.com/stampworks/sigforge/internal/pkg/logger"
	"github.com/stampworks/sigforge/internal/service/deployment"
	"github.com/stampworks/sigforge/internal/service/resolution"
)

// emailContext is the optional message context for rule-based deployments.
// Subject is a pointer so "no subject supplied" and "empty subject" stay
// distinguishable.
type emailContext struct {
	EmailType  domain.EmailType `json:"email_type"`
	Recipients []string         `json:"recipients"`
	CC         []string         `json:"cc"`
	Subject    *string          `json:"subject"`
	Timestamp  *time.Time       `json:"timestamp"`
}

func (e *emailContext) overrides() resolution.ContextOverrides {
	if e == nil {
		return resolution.ContextOverrides{}
	}
	o := resolution.ContextOverrides{
		EmailType:    e.EmailType,
		Recipients:   e.Recipients,
		CCRecipients: e.CC,
	}
	if e.Subject != nil {
		o.Subject = *e.Subject
		o.HasSubject = true
	}
	if e.Timestamp != nil {
		o.Timestamp = *e.Timestamp
	}
	return o
}

type startDeploymentRequest struct {
	TemplateID  string            `json:"template_id"`
	TargetMode  domain.TargetMode `json:"target_mode"`
	SelectedIDs []string          `json:"selected_ids"`
	UseRules    bool              `json:"use_rules"`
	Email       *emailContext     `json:"email"`
}

func (s *Server) handleStartDeployment(w http.ResponseWriter, r *http.Request) {
	var body startDeploymentRequest
	if !httputil.Decode(w, r, &body) {
		return
	}

	orgID := orgFromContext(r.Context())
	caller := callerFromContext(r.Context())

	summary, err := s.deployments.StartDeployment(r.Context(), orgID, deployment.Request{
		TemplateID:   body.TemplateID,
		TargetMode:   body.TargetMode,
		SelectedIDs:  body.SelectedIDs,
		UseRules:     body.UseRules,
		Email:        body.Email.overrides(),
		CallerAuthID: caller.AuthID,
		CallerEmail:  caller.Email,
		CallerName:   caller.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, deployment.ErrMissingTemplateID),
			errors.Is(err, deployment.ErrInvalidTargetMode),
			errors.Is(err, deployment.ErrNoTargets):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, deployment.ErrTemplateNotFound):
			httputil.NotFound(w, err.Error())
		case errors.Is(err, resolution.ErrUserNotFound):
			httputil.NotFound(w, "caller has no directory record")
		default:
			logger.Error("deployment start failed", "error", err.Error())
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.Created(w, summary)
}

// deploymentResponse merges the persisted aggregate with live progress when a
// tracker entry still exists.
type deploymentResponse struct {
	*domain.Deployment
	Live *liveProgress `json:"live,omitempty"`
}

type liveProgress struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromContext(r.Context())
	id := chi.URLParam(r, "id")

	dep, err := s.deployments.GetDeployment(r.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, deployment.ErrDeploymentNotFound) {
			httputil.NotFound(w, "deployment not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	resp := deploymentResponse{Deployment: dep}
	if s.progress != nil && dep.Status == domain.DeploymentRunning {
		if p, ok, err := s.progress.Get(r.Context(), id); err == nil && ok {
			resp.Live = &liveProgress{
				Successful: p.Successful,
				Failed:     p.Failed,
				Pending:    p.Total - p.Successful - p.Failed,
			}
		}
	}
	httputil.OK(w, resp)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	orgID := orgFromContext(r.Context())
	id := chi.URLParam(r, "id")

	history, err := s.deployments.GetHistory(r.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, deployment.ErrDeploymentNotFound) {
			httputil.NotFound(w, "deployment not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"history": history})
}
