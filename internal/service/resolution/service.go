package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/service/rules"
)

// ContextOverrides are the caller-supplied message attributes merged over the
// defaults derived from the user and organization records. Zero values leave
// the derived default in place, except Subject which is only considered when
// HasSubject is set.
type ContextOverrides struct {
	EmailType    domain.EmailType
	Recipients   []string
	CCRecipients []string
	Subject      string
	HasSubject   bool
	Timestamp    time.Time
}

// Service resolves which signature template applies to a user.
// Safe for concurrent use if the underlying repositories are.
type Service struct {
	directory Directory
	orgs      Organizations
	rules     Rules
	templates Templates
	now       func() time.Time
}

// NewService creates a resolution service backed by the given repositories.
func NewService(directory Directory, orgs Organizations, ruleRepo Rules, templates Templates) *Service {
	return &Service{
		directory: directory,
		orgs:      orgs,
		rules:     ruleRepo,
		templates: templates,
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ResolveTemplateForUser matches the organization's rules against a context
// built for the given user. Returns ("", nil) when no rule matches.
func (s *Service) ResolveTemplateForUser(ctx context.Context, orgID, userID string, overrides ContextOverrides) (string, error) {
	user, err := s.directory.GetUser(ctx, orgID, userID)
	if err != nil {
		return "", err
	}

	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return "", err
	}

	ruleSet, err := s.rules.GetActiveRules(ctx, orgID)
	if err != nil {
		return "", fmt.Errorf("load rules: %w", err)
	}

	evalCtx := s.buildContext(user, org, overrides)
	templateID, ok := rules.Resolve(ruleSet, evalCtx)
	if !ok {
		return "", nil
	}
	return templateID, nil
}

// ResolveWithFallback resolves via rules and, when nothing matches, falls
// back to the organization's default template. Returns ErrNoTemplate when
// neither exists.
func (s *Service) ResolveWithFallback(ctx context.Context, orgID, userID string, overrides ContextOverrides) (string, error) {
	templateID, err := s.ResolveTemplateForUser(ctx, orgID, userID, overrides)
	if err != nil {
		return "", err
	}
	if templateID != "" {
		return templateID, nil
	}

	def, err := s.templates.GetDefaultTemplate(ctx, orgID)
	if err != nil {
		return "", err
	}
	return def.ID, nil
}

// buildContext merges caller overrides over defaults derived from the user
// and organization records.
func (s *Service) buildContext(user *domain.User, org *domain.Organization, o ContextOverrides) domain.EvaluationContext {
	evalCtx := domain.EvaluationContext{
		SenderID:           user.ID,
		SenderEmail:        user.Email,
		SenderDepartment:   user.Department,
		EmailType:          domain.EmailTypeNew,
		OrganizationID:     org.ID,
		OrganizationDomain: org.Domain,
		Timestamp:          s.now(),
	}

	if o.EmailType != "" {
		evalCtx.EmailType = o.EmailType
	}
	if len(o.Recipients) > 0 {
		evalCtx.Recipients = o.Recipients
	}
	if len(o.CCRecipients) > 0 {
		evalCtx.CCRecipients = o.CCRecipients
	}
	if o.HasSubject {
		evalCtx.Subject = o.Subject
		evalCtx.HasSubject = true
	}
	if !o.Timestamp.IsZero() {
		evalCtx.Timestamp = o.Timestamp
	}
	return evalCtx
}
