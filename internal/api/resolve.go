package api

import (
	"errors"
	"net/http"

	"github.com/stampworks/sigforge/internal/pkg/httputil"
	"github.com/stampworks/sigforge/internal/service/resolution"
)

type resolveRequest struct {
	UserID string        `json:"user_id"`
	Email  *emailContext `json:"email"`
}

type resolveResponse struct {
	TemplateID  string `json:"template_id"`
	RuleMatched bool   `json:"rule_matched"`
}

// handleResolve is a dry run: it reports which template the rule engine would
// pick for a user and message context, without writing anything.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body resolveRequest
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		httputil.BadRequest(w, "user_id is required")
		return
	}

	orgID := orgFromContext(r.Context())
	overrides := body.Email.overrides()

	tplID, err := s.resolution.ResolveTemplateForUser(r.Context(), orgID, body.UserID, overrides)
	if err != nil {
		if errors.Is(err, resolution.ErrUserNotFound) {
			httputil.NotFound(w, "user not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	if tplID != "" {
		httputil.OK(w, resolveResponse{TemplateID: tplID, RuleMatched: true})
		return
	}

	// No rule matched; report the default the deployment path would fall
	// back to.
	tplID, err = s.resolution.ResolveWithFallback(r.Context(), orgID, body.UserID, overrides)
	if err != nil {
		if errors.Is(err, resolution.ErrNoTemplate) {
			httputil.NotFound(w, "no rule matched and organization has no default template")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, resolveResponse{TemplateID: tplID, RuleMatched: false})
}
