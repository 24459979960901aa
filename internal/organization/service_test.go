package organization

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/cache"
	orgDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/organization"
	"github.com/ycchuang/org-management/internal/core/datamodel/rbac"
	"github.com/ycchuang/org-management/internal/core/events"
	"github.com/ycchuang/org-management/pkg/logger"
)

func TestOrganization(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Organization Module Suite")
}

// mockOrgRepository is an in-memory directory with per-org member lists
// and call counters so specs can assert when the cache absorbed a read.
type mockOrgRepository struct {
	orgs    map[string]*orgDatamodel.Organization
	deleted map[string]*orgDatamodel.Organization
	members map[string][]Member
	nextID  int

	allActiveCalls int
}

func newMockOrgRepository() *mockOrgRepository {
	return &mockOrgRepository{
		orgs:    make(map[string]*orgDatamodel.Organization),
		deleted: make(map[string]*orgDatamodel.Organization),
		members: make(map[string][]Member),
		nextID:  1,
	}
}

func (m *mockOrgRepository) add(name string, parentID *string) *orgDatamodel.Organization {
	org := &orgDatamodel.Organization{
		ID:            ulidLike(m.nextID),
		Name:          name,
		Type:          "DEPARTMENT",
		ParentID:      parentID,
		MonthlyBudget: "1000.00",
		Status:        orgDatamodel.StatusActive,
	}
	m.nextID++
	m.orgs[org.ID] = org
	return org
}

// ulidLike pads a counter to the 26-char id width used in production.
func ulidLike(n int) string {
	id := "01HZZZZZZZZZZZZZZZZZZZZZZ"
	digits := "0123456789"
	return id[:25] + string(digits[n%10])
}

func (m *mockOrgRepository) AllActiveNodes(_ context.Context) ([]*orgDatamodel.Organization, error) {
	m.allActiveCalls++
	out := make([]*orgDatamodel.Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockOrgRepository) FindByID(_ context.Context, id string) (*orgDatamodel.Organization, error) {
	if org, ok := m.orgs[id]; ok {
		return org, nil
	}
	return nil, internal.ErrOrganizationNotFound
}

func (m *mockOrgRepository) List(_ context.Context, params ListParams) ([]*orgDatamodel.Organization, int64, error) {
	all, _ := m.AllActiveNodes(context.Background())
	return all, int64(len(all)), nil
}

func (m *mockOrgRepository) Create(_ context.Context, org *orgDatamodel.Organization) error {
	if org.ID == "" {
		org.ID = ulidLike(m.nextID)
		m.nextID++
	}
	m.orgs[org.ID] = org
	return nil
}

func (m *mockOrgRepository) Update(_ context.Context, org *orgDatamodel.Organization) error {
	if _, ok := m.orgs[org.ID]; !ok {
		return internal.ErrOrganizationNotFound
	}
	m.orgs[org.ID] = org
	return nil
}

func (m *mockOrgRepository) SoftDelete(_ context.Context, id string) error {
	org, ok := m.orgs[id]
	if !ok {
		return internal.ErrOrganizationNotFound
	}
	delete(m.orgs, id)
	m.deleted[id] = org
	return nil
}

func (m *mockOrgRepository) Restore(_ context.Context, id string) (*orgDatamodel.Organization, error) {
	org, ok := m.deleted[id]
	if !ok {
		return nil, internal.ErrOrganizationNotFound
	}
	delete(m.deleted, id)
	m.orgs[id] = org
	return org, nil
}

func (m *mockOrgRepository) Exists(_ context.Context, id string) (bool, error) {
	_, ok := m.orgs[id]
	return ok, nil
}

func (m *mockOrgRepository) SiblingNameExists(_ context.Context, parentID *string, name, excludeID string) (bool, error) {
	for _, org := range m.orgs {
		if org.ID == excludeID || org.Name != name {
			continue
		}
		if (parentID == nil) != (org.ParentID == nil) {
			continue
		}
		if parentID == nil || *parentID == *org.ParentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrgRepository) CountMembers(_ context.Context, id string) (int64, error) {
	return int64(len(m.members[id])), nil
}

func (m *mockOrgRepository) MembersWithRoles(_ context.Context, id string, page, perPage int) ([]Member, int64, error) {
	all := m.members[id]
	total := int64(len(all))
	start := (page - 1) * perPage
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

var _ = ginkgo.Describe("OrganizationService", func() {
	var (
		ctx     context.Context
		repo    *mockOrgRepository
		store   *cache.MemoryCache
		bus     *events.EventBus
		service *Service
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		repo = newMockOrgRepository()
		store = cache.NewMemoryCache()
		bus = events.NewEventBus(logger.LoggerWrapper())

		invalidator := NewCacheInvalidator(store, logger.LoggerWrapper())
		invalidator.Register(bus)

		service = NewService(repo, store, bus, logger.LoggerWrapper())
	})

	names := func(nodes []*OrgNode) []string {
		out := make([]string, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, n.Name)
		}
		return out
	}

	ginkgo.Describe("GetOrganizationTree", func() {
		ginkgo.It("nests children under their parents, sorted by name", func() {
			hq := repo.add("Headquarters", nil)
			repo.add("Finance", &hq.ID)
			eng := repo.add("Engineering", &hq.ID)
			repo.add("Platform", &eng.ID)

			forest, err := service.GetOrganizationTree(ctx)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(forest).To(gomega.HaveLen(1))
			gomega.Expect(forest[0].Name).To(gomega.Equal("Headquarters"))
			gomega.Expect(names(forest[0].Children)).To(gomega.Equal([]string{"Engineering", "Finance"}))
			gomega.Expect(names(forest[0].Children[0].Children)).To(gomega.Equal([]string{"Platform"}))
		})

		ginkgo.It("promotes nodes with a missing parent to roots", func() {
			gone := "01HZZZZZZZZZZZZZZZZZZZZZ9"
			repo.add("Orphan", &gone)
			repo.add("Actual Root", nil)

			forest, err := service.GetOrganizationTree(ctx)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(names(forest)).To(gomega.Equal([]string{"Actual Root", "Orphan"}))
		})

		ginkgo.It("serves the second read from cache", func() {
			repo.add("Headquarters", nil)

			_, err := service.GetOrganizationTree(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = service.GetOrganizationTree(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(repo.allActiveCalls).To(gomega.Equal(1))
		})

		ginkgo.It("rebuilds after a corrupt cache entry", func() {
			repo.add("Headquarters", nil)
			key := TreeCacheKey(time.Now())
			gomega.Expect(store.Set(ctx, key, "{not json", time.Minute)).To(gomega.Succeed())

			forest, err := service.GetOrganizationTree(ctx)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(names(forest)).To(gomega.Equal([]string{"Headquarters"}))
		})

		ginkgo.It("scopes cache keys to the calendar day", func() {
			repo.add("Headquarters", nil)

			day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			service.now = func() time.Time { return day }
			_, err := service.GetOrganizationTree(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			service.now = func() time.Time { return day.AddDate(0, 0, 1) }
			_, err = service.GetOrganizationTree(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(repo.allActiveCalls).To(gomega.Equal(2))
		})
	})

	ginkgo.Describe("GetChildren", func() {
		ginkgo.It("returns the direct children of a node", func() {
			hq := repo.add("Headquarters", nil)
			repo.add("Engineering", &hq.ID)
			repo.add("Finance", &hq.ID)

			children, err := service.GetChildren(ctx, hq.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(names(children)).To(gomega.Equal([]string{"Engineering", "Finance"}))
		})

		ginkgo.It("returns an empty slice for a leaf", func() {
			hq := repo.add("Headquarters", nil)
			leaf := repo.add("Engineering", &hq.ID)

			children, err := service.GetChildren(ctx, leaf.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(children).To(gomega.BeEmpty())
		})

		ginkgo.It("sees a newly created child immediately", func() {
			hq := repo.add("Headquarters", nil)

			children, err := service.GetChildren(ctx, hq.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(children).To(gomega.BeEmpty())

			_, err = service.Create(ctx, CreateOrganizationDTO{
				Name:     "Engineering",
				Type:     "DEPARTMENT",
				ParentID: &hq.ID,
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			children, err = service.GetChildren(ctx, hq.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(names(children)).To(gomega.Equal([]string{"Engineering"}))
		})

		ginkgo.It("evicts the former parent when a node is moved", func() {
			oldParent := repo.add("Old Parent", nil)
			newParent := repo.add("New Parent", nil)
			child := repo.add("Child", &oldParent.ID)

			children, err := service.GetChildren(ctx, oldParent.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(names(children)).To(gomega.Equal([]string{"Child"}))

			newParentPtr := &newParent.ID
			_, err = service.Update(ctx, child.ID, UpdateOrganizationDTO{ParentID: &newParentPtr})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			children, err = service.GetChildren(ctx, oldParent.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(children).To(gomega.BeEmpty())

			children, err = service.GetChildren(ctx, newParent.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(names(children)).To(gomega.Equal([]string{"Child"}))
		})
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("defaults status and budget", func() {
			org, err := service.Create(ctx, CreateOrganizationDTO{Name: "Headquarters", Type: "COMPANY"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(org.Status).To(gomega.Equal(orgDatamodel.StatusActive))
			gomega.Expect(org.MonthlyBudget).To(gomega.Equal("0"))
		})

		ginkgo.It("rejects a missing parent", func() {
			gone := "01HZZZZZZZZZZZZZZZZZZZZZ9"
			_, err := service.Create(ctx, CreateOrganizationDTO{
				Name:     "Engineering",
				Type:     "DEPARTMENT",
				ParentID: &gone,
			})

			gomega.Expect(err).To(gomega.Equal(internal.ErrOrganizationNotFound))
		})

		ginkgo.It("rejects a duplicate sibling name", func() {
			hq := repo.add("Headquarters", nil)
			repo.add("Engineering", &hq.ID)

			_, err := service.Create(ctx, CreateOrganizationDTO{
				Name:     "Engineering",
				Type:     "DEPARTMENT",
				ParentID: &hq.ID,
			})

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeDuplicateResource))
		})

		ginkgo.It("allows the same name under a different parent", func() {
			hq := repo.add("Headquarters", nil)
			branch := repo.add("Branch", nil)
			repo.add("Engineering", &hq.ID)

			_, err := service.Create(ctx, CreateOrganizationDTO{
				Name:     "Engineering",
				Type:     "DEPARTMENT",
				ParentID: &branch.ID,
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("Update", func() {
		ginkgo.It("applies only the provided fields", func() {
			org := repo.add("Headquarters", nil)
			newName := "Head Office"

			updated, err := service.Update(ctx, org.ID, UpdateOrganizationDTO{Name: &newName})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.Name).To(gomega.Equal("Head Office"))
			gomega.Expect(updated.Type).To(gomega.Equal("DEPARTMENT"))
		})

		ginkgo.It("refuses to make a node its own parent", func() {
			org := repo.add("Headquarters", nil)
			self := &org.ID

			_, err := service.Update(ctx, org.ID, UpdateOrganizationDTO{ParentID: &self})

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeValidationFailed))
		})

		ginkgo.It("moves a node to root with an explicit null parent", func() {
			hq := repo.add("Headquarters", nil)
			child := repo.add("Engineering", &hq.ID)

			var root *string
			updated, err := service.Update(ctx, child.ID, UpdateOrganizationDTO{ParentID: &root})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.ParentID).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("Delete and Restore", func() {
		ginkgo.It("removes the node from the tree and puts it back on restore", func() {
			hq := repo.add("Headquarters", nil)
			eng := repo.add("Engineering", &hq.ID)

			forest, err := service.GetOrganizationTree(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(FindNode(forest, eng.ID)).ToNot(gomega.BeNil())

			gomega.Expect(service.Delete(ctx, eng.ID)).To(gomega.Succeed())

			forest, err = service.GetOrganizationTree(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(FindNode(forest, eng.ID)).To(gomega.BeNil())

			_, err = service.Restore(ctx, eng.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			forest, err = service.GetOrganizationTree(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(FindNode(forest, eng.ID)).ToNot(gomega.BeNil())
		})

		ginkgo.It("returns NotFound for an unknown id", func() {
			gomega.Expect(service.Delete(ctx, "missing")).To(gomega.Equal(internal.ErrOrganizationNotFound))
		})
	})

	ginkgo.Describe("GetUsersWithRoles", func() {
		ginkgo.It("returns members with their roles", func() {
			org := repo.add("Engineering", nil)
			repo.members[org.ID] = []Member{
				{ID: 1, Name: "Admin", Email: "admin@mail.com", IsActive: true, Roles: []rbac.Role{{ID: 1, Name: "admin"}}},
				{ID: 2, Name: "Alex", Email: "alex@mail.com", IsActive: true, Roles: []rbac.Role{{ID: 2, Name: "member"}}},
			}

			page, err := service.GetUsersWithRoles(ctx, org.ID, 1, 20)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(page.Members).To(gomega.HaveLen(2))
			gomega.Expect(page.TotalCount).To(gomega.BeNumerically("==", 2))
			gomega.Expect(page.Members[0].Roles[0].Name).To(gomega.Equal("admin"))
		})

		ginkgo.It("paginates", func() {
			org := repo.add("Engineering", nil)
			repo.members[org.ID] = []Member{
				{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"},
			}

			page, err := service.GetUsersWithRoles(ctx, org.ID, 2, 2)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(page.Members).To(gomega.HaveLen(1))
			gomega.Expect(page.Page).To(gomega.Equal(2))
			gomega.Expect(page.TotalCount).To(gomega.BeNumerically("==", 3))
		})

		ginkgo.It("distinguishes an empty organization from a missing one", func() {
			org := repo.add("Engineering", nil)

			page, err := service.GetUsersWithRoles(ctx, org.ID, 1, 20)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(page.Members).To(gomega.BeEmpty())

			_, err = service.GetUsersWithRoles(ctx, "missing", 1, 20)
			gomega.Expect(err).To(gomega.Equal(internal.ErrOrganizationNotFound))
		})
	})

	ginkgo.Describe("GetStats", func() {
		ginkgo.It("reports budget and member count", func() {
			org := repo.add("Engineering", nil)
			repo.members[org.ID] = []Member{{ID: 1}, {ID: 2}}

			stats, err := service.GetStats(ctx, org.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(stats.OrganizationID).To(gomega.Equal(org.ID))
			gomega.Expect(stats.MonthlyBudget).To(gomega.Equal("1000.00"))
			gomega.Expect(stats.Members).To(gomega.BeNumerically("==", 2))
			gomega.Expect(stats.Reimbursements).To(gomega.BeZero())
		})
	})
})

var _ = ginkgo.Describe("tree cache keys", func() {
	ginkgo.It("embeds the calendar date", func() {
		at := time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)
		gomega.Expect(TreeCacheKey(at)).To(gomega.Equal("organization_tree:2026-08-30"))
		gomega.Expect(ChildrenCacheKey("01HXYZ", at)).To(gomega.Equal("organization_children:01HXYZ:2026-08-30"))
	})

	ginkgo.It("expires date-scoped entries at the next midnight", func() {
		at := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
		gomega.Expect(TTLUntilMidnight(at)).To(gomega.Equal(time.Hour))
	})
})
