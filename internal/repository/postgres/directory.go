package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/service/resolution"
)

// DirectoryRepo implements resolution.Directory and resolution.Organizations
// against the synced directory tables.
type DirectoryRepo struct{ db *sql.DB }

// NewDirectoryRepo creates a Postgres-backed directory repository.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

const userColumns = `id, organization_id, COALESCE(auth_id,''), email,
       COALESCE(display_name,''), COALESCE(department,''), COALESCE(title,''),
       COALESCE(phone,''), COALESCE(profile,'{}'), created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	u := &domain.User{}
	var profileJSON []byte
	err := row.Scan(
		&u.ID, &u.OrganizationID, &u.AuthID, &u.Email,
		&u.DisplayName, &u.Department, &u.Title, &u.Phone,
		&profileJSON, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &u.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	return u, nil
}

func (r *DirectoryRepo) GetUser(ctx context.Context, orgID, userID string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM org_users
		WHERE id = $1 AND organization_id = $2
	`, userID, orgID))
	if err == sql.ErrNoRows {
		return nil, resolution.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *DirectoryRepo) GetUserByAuthID(ctx context.Context, authID string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM org_users
		WHERE auth_id = $1
	`, authID))
	if err == sql.ErrNoRows {
		return nil, resolution.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by auth id: %w", err)
	}
	return u, nil
}

func (r *DirectoryRepo) GetUsersByOrg(ctx context.Context, orgID string, ids []string) ([]domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM org_users WHERE organization_id = $1`
	args := []interface{}{orgID}
	if len(ids) > 0 {
		q += ` AND id = ANY($2)`
		args = append(args, pq.Array(ids))
	}
	q += ` ORDER BY email ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get users by org: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *DirectoryRepo) GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error) {
	o := &domain.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(domain,''), created_at
		FROM organizations
		WHERE id = $1
	`, orgID).Scan(&o.ID, &o.Name, &o.Domain, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, resolution.ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}
