package user

import (
	"context"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/auth"
	userDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/user"
	"github.com/ycchuang/org-management/pkg/logger"
)

func TestUser(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "User Module Suite")
}

type mockUserRepository struct {
	users       map[int64]*userDatamodel.User
	memberships map[int64][]string
	validOrgIDs map[string]struct{}
	nextID      int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:       make(map[int64]*userDatamodel.User),
		memberships: make(map[int64][]string),
		validOrgIDs: make(map[string]struct{}),
		nextID:      1,
	}
}

func (m *mockUserRepository) FindByID(_ context.Context, id int64) (*userDatamodel.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) List(_ context.Context, params ListParams) ([]*userDatamodel.User, int64, error) {
	out := make([]*userDatamodel.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (m *mockUserRepository) Create(_ context.Context, u *userDatamodel.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return internal.ErrDuplicateResource
		}
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepository) Update(_ context.Context, u *userDatamodel.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return internal.ErrUserNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepository) SoftDelete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return internal.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepository) OrganizationIDs(_ context.Context, userID int64) ([]string, error) {
	ids := m.memberships[userID]
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (m *mockUserRepository) ReplaceOrganizations(_ context.Context, userID int64, orgIDs []string) error {
	for _, id := range orgIDs {
		if _, ok := m.validOrgIDs[id]; !ok {
			return internal.ErrOrganizationNotFound
		}
	}
	m.memberships[userID] = orgIDs
	return nil
}

var _ = ginkgo.Describe("UserService", func() {
	var (
		ctx     context.Context
		repo    *mockUserRepository
		service *Service
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		repo = newMockUserRepository()
		service = NewService(repo, logger.LoggerWrapper(), 4)
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("stores a bcrypt hash, never the raw password", func() {
			user, err := service.Create(ctx, CreateUserDTO{
				Name:     "Alex",
				Email:    "alex@mail.com",
				Password: "super-secret-pw",
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(user.PasswordHash).ToNot(gomega.Equal("super-secret-pw"))
			gomega.Expect(auth.VerifyPassword(user.PasswordHash, "super-secret-pw")).To(gomega.Succeed())
		})

		ginkgo.It("starts the account active but unverified", func() {
			user, err := service.Create(ctx, CreateUserDTO{
				Name:     "Alex",
				Email:    "alex@mail.com",
				Password: "super-secret-pw",
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(user.IsActive).To(gomega.BeTrue())
			gomega.Expect(user.IsVerified()).To(gomega.BeFalse())
		})

		ginkgo.It("rejects a duplicate email", func() {
			_, err := service.Create(ctx, CreateUserDTO{Name: "Alex", Email: "alex@mail.com", Password: "super-secret-pw"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.Create(ctx, CreateUserDTO{Name: "Other", Email: "alex@mail.com", Password: "super-secret-pw"})
			gomega.Expect(err).To(gomega.Equal(internal.ErrDuplicateResource))
		})

		ginkgo.It("rejects an invalid email", func() {
			_, err := service.Create(ctx, CreateUserDTO{Name: "Alex", Email: "not-an-email", Password: "super-secret-pw"})

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeValidationFailed))
		})
	})

	ginkgo.Describe("Update", func() {
		ginkgo.It("applies only the provided fields", func() {
			created, err := service.Create(ctx, CreateUserDTO{Name: "Alex", Email: "alex@mail.com", Password: "super-secret-pw"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			inactive := false
			updated, err := service.Update(ctx, created.ID, UpdateUserDTO{IsActive: &inactive})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.IsActive).To(gomega.BeFalse())
			gomega.Expect(updated.Name).To(gomega.Equal("Alex"))
			gomega.Expect(updated.Email).To(gomega.Equal("alex@mail.com"))
		})

		ginkgo.It("returns not found for an unknown id", func() {
			name := "Alex"
			_, err := service.Update(ctx, 42, UpdateUserDTO{Name: &name})
			gomega.Expect(err).To(gomega.Equal(internal.ErrUserNotFound))
		})
	})

	ginkgo.Describe("Delete", func() {
		ginkgo.It("removes the user", func() {
			created, err := service.Create(ctx, CreateUserDTO{Name: "Alex", Email: "alex@mail.com", Password: "super-secret-pw"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(service.Delete(ctx, created.ID)).To(gomega.Succeed())

			_, err = service.Get(ctx, created.ID)
			gomega.Expect(err).To(gomega.Equal(internal.ErrUserNotFound))
		})
	})

	ginkgo.Describe("SyncOrganizations", func() {
		var userID int64

		ginkgo.BeforeEach(func() {
			created, err := service.Create(ctx, CreateUserDTO{Name: "Alex", Email: "alex@mail.com", Password: "super-secret-pw"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			userID = created.ID

			repo.validOrgIDs["org-a"] = struct{}{}
			repo.validOrgIDs["org-b"] = struct{}{}
		})

		ginkgo.It("replaces the whole membership set", func() {
			ids, err := service.SyncOrganizations(ctx, userID, []string{"org-a", "org-b"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ids).To(gomega.ConsistOf("org-a", "org-b"))

			ids, err = service.SyncOrganizations(ctx, userID, []string{"org-b"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ids).To(gomega.ConsistOf("org-b"))
		})

		ginkgo.It("clears all memberships with an empty list", func() {
			_, err := service.SyncOrganizations(ctx, userID, []string{"org-a"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			ids, err := service.SyncOrganizations(ctx, userID, []string{})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ids).To(gomega.BeEmpty())
		})

		ginkgo.It("deduplicates repeated ids", func() {
			ids, err := service.SyncOrganizations(ctx, userID, []string{"org-a", "org-a", "org-b"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ids).To(gomega.HaveLen(2))
		})

		ginkgo.It("fails when any organization id is unknown", func() {
			_, err := service.SyncOrganizations(ctx, userID, []string{"org-a", "org-missing"})
			gomega.Expect(err).To(gomega.Equal(internal.ErrOrganizationNotFound))
		})

		ginkgo.It("fails for an unknown user", func() {
			_, err := service.SyncOrganizations(ctx, 42, []string{"org-a"})
			gomega.Expect(err).To(gomega.Equal(internal.ErrUserNotFound))
		})
	})
})
