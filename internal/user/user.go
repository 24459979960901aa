package user

import (
	"context"

	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type ListParams struct {
	Page    int
	PerPage int
	Search  string
	OrgID   string
	Active  *bool
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
}

// RepositoryAPI is the persistence contract for user accounts and their
// organization memberships.
type RepositoryAPI interface {
	FindByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	List(ctx context.Context, params ListParams) ([]*userDatamodel.User, int64, error)
	Create(ctx context.Context, user *userDatamodel.User) error
	Update(ctx context.Context, user *userDatamodel.User) error
	SoftDelete(ctx context.Context, id int64) error
	OrganizationIDs(ctx context.Context, userID int64) ([]string, error)
	// ReplaceOrganizations swaps the full membership set in one
	// transaction; missing org ids fail the whole call.
	ReplaceOrganizations(ctx context.Context, userID int64, orgIDs []string) error
}
