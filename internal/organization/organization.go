package organization

import (
	"context"
	"fmt"
	"sort"
	"time"

	orgDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/organization"
	"github.com/ycchuang/org-management/internal/core/datamodel/rbac"
)

const (
	treeCacheKeyPrefix     = "organization_tree:"
	childrenCacheKeyPrefix = "organization_children:"

	DefaultPerPage = 20
	MaxPerPage     = 100
)

// OrgNode is one node of the directory forest: the persisted fields the
// frontend needs plus recursively nested children. Nodes hold no
// back-reference to their parent so the structure marshals cleanly.
type OrgNode struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Type     string              `json:"type"`
	ParentID *string             `json:"parent_id"`
	Status   orgDatamodel.Status `json:"status"`
	Children []*OrgNode          `json:"children"`
}

// Member is a user row from the membership join, with the roles (and
// their permissions) the user carries.
type Member struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	EmployeeID *string     `json:"employee_id,omitempty"`
	IsActive   bool        `json:"is_active"`
	Roles      []rbac.Role `json:"roles"`
}

// Stats aggregates directory figures for one organization.
// Reimbursements is always zero until the expense subsystem lands.
type Stats struct {
	OrganizationID string `json:"organization_id"`
	MonthlyBudget  string `json:"monthly_budget"`
	Members        int64  `json:"members"`
	Reimbursements int64  `json:"reimbursements"`
}

// MemberPage is one page of GetUsersWithRoles results.
type MemberPage struct {
	Members    []Member `json:"members"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalCount int64    `json:"total_count"`
}

type ListParams struct {
	Page     int
	PerPage  int
	Search   string
	Type     string
	Status   string
	ParentID *string
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

// RepositoryAPI is the persistence contract for the directory.
type RepositoryAPI interface {
	AllActiveNodes(ctx context.Context) ([]*orgDatamodel.Organization, error)
	FindByID(ctx context.Context, id string) (*orgDatamodel.Organization, error)
	List(ctx context.Context, params ListParams) ([]*orgDatamodel.Organization, int64, error)
	Create(ctx context.Context, org *orgDatamodel.Organization) error
	Update(ctx context.Context, org *orgDatamodel.Organization) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) (*orgDatamodel.Organization, error)
	Exists(ctx context.Context, id string) (bool, error)
	SiblingNameExists(ctx context.Context, parentID *string, name, excludeID string) (bool, error)
	CountMembers(ctx context.Context, id string) (int64, error)
	MembersWithRoles(ctx context.Context, id string, page, perPage int) ([]Member, int64, error)
}

// TreeCacheKey is date-scoped so entries roll over naturally at midnight.
func TreeCacheKey(now time.Time) string {
	return treeCacheKeyPrefix + now.Format("2006-01-02")
}

func ChildrenCacheKey(orgID string, now time.Time) string {
	return fmt.Sprintf("%s%s:%s", childrenCacheKeyPrefix, orgID, now.Format("2006-01-02"))
}

// TTLUntilMidnight returns how long until the next local midnight, the
// lifetime of every date-scoped cache entry.
func TTLUntilMidnight(now time.Time) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return midnight.Sub(now)
}

// BuildForest assembles nested OrgNodes from a flat scan of active rows.
// A single pass groups children by parent id into an adjacency map, then
// the forest is assembled root-down. Rows pointing at a missing parent
// (parent soft-deleted out from under them) are promoted to roots rather
// than dropped.
func BuildForest(orgs []*orgDatamodel.Organization) []*OrgNode {
	nodes := make(map[string]*OrgNode, len(orgs))
	for _, org := range orgs {
		nodes[org.ID] = &OrgNode{
			ID:       org.ID,
			Name:     org.Name,
			Type:     org.Type,
			ParentID: org.ParentID,
			Status:   org.Status,
			Children: []*OrgNode{},
		}
	}

	var roots []*OrgNode
	for _, org := range orgs {
		node := nodes[org.ID]
		if org.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*org.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortForest(roots)
	return roots
}

func sortForest(nodes []*OrgNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for _, n := range nodes {
		sortForest(n.Children)
	}
}

// FindNode walks the forest depth-first and returns the node with the
// given id, or nil.
func FindNode(forest []*OrgNode, id string) *OrgNode {
	stack := make([]*OrgNode, len(forest))
	copy(stack, forest)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.ID == id {
			return node
		}
		stack = append(stack, node.Children...)
	}
	return nil
}
