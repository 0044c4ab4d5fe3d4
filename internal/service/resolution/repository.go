package resolution

import (
	"context"

	"github.com/stampworks/sigforge/internal/domain"
)

// Directory provides read access to the user directory.
// Implementations must be safe for concurrent use.
type Directory interface {
	// GetUser returns a user by ID. Returns ErrUserNotFound if absent.
	GetUser(ctx context.Context, orgID, userID string) (*domain.User, error)

	// GetUserByAuthID returns the directory record linked to an auth
	// identity. Returns ErrUserNotFound if absent.
	GetUserByAuthID(ctx context.Context, authID string) (*domain.User, error)

	// GetUsersByOrg returns directory members of an organization. When ids
	// is non-empty the result is restricted to those IDs; unknown IDs are
	// silently dropped.
	GetUsersByOrg(ctx context.Context, orgID string, ids []string) ([]domain.User, error)
}

// Organizations provides read access to tenant metadata.
type Organizations interface {
	// GetOrganization returns org metadata. Returns ErrOrgNotFound if absent.
	GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error)
}

// Rules provides read access to signature rules.
type Rules interface {
	// GetActiveRules returns the organization's active rules in no
	// particular order; the rule engine owns ordering.
	GetActiveRules(ctx context.Context, orgID string) ([]domain.SignatureRule, error)
}

// Templates provides org-scoped read access to signature templates.
type Templates interface {
	// GetTemplate returns a template only if it belongs to the given
	// organization. Returns ErrNoTemplate if absent.
	GetTemplate(ctx context.Context, orgID, templateID string) (*domain.SignatureTemplate, error)

	// GetDefaultTemplate returns the organization's default template, or
	// ErrNoTemplate when none is flagged.
	GetDefaultTemplate(ctx context.Context, orgID string) (*domain.SignatureTemplate, error)
}
