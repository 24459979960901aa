package organization

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	internal "github.com/ycchuang/org-management/internal"
	"github.com/ycchuang/org-management/internal/cache"
	orgDatamodel "github.com/ycchuang/org-management/internal/core/datamodel/organization"
	"github.com/ycchuang/org-management/internal/core/events"
)

// ServiceAPI is the directory surface consumed by transport.
type ServiceAPI interface {
	List(ctx context.Context, params ListParams) ([]*orgDatamodel.Organization, int64, error)
	Get(ctx context.Context, id string) (*orgDatamodel.Organization, error)
	Create(ctx context.Context, dto CreateOrganizationDTO) (*orgDatamodel.Organization, error)
	Update(ctx context.Context, id string, dto UpdateOrganizationDTO) (*orgDatamodel.Organization, error)
	Delete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) (*orgDatamodel.Organization, error)
	GetOrganizationTree(ctx context.Context) ([]*OrgNode, error)
	GetChildren(ctx context.Context, id string) ([]*OrgNode, error)
	GetUsersWithRoles(ctx context.Context, id string, page, perPage int) (*MemberPage, error)
	GetStats(ctx context.Context, id string) (*Stats, error)
}

// Service owns the directory reads/writes and the tree cache. Every
// mutation publishes a synchronous event; the invalidator evicts the
// affected cache keys before the mutation call returns.
type Service struct {
	repo   RepositoryAPI
	store  cache.Cache
	bus    *events.EventBus
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, store cache.Cache, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) List(ctx context.Context, params ListParams) ([]*orgDatamodel.Organization, int64, error) {
	params.Normalize()
	return s.repo.List(ctx, params)
}

func (s *Service) Get(ctx context.Context, id string) (*orgDatamodel.Organization, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, dto CreateOrganizationDTO) (*orgDatamodel.Organization, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	if dto.ParentID != nil {
		if _, err := s.repo.FindByID(ctx, *dto.ParentID); err != nil {
			return nil, err
		}
	}

	taken, err := s.repo.SiblingNameExists(ctx, dto.ParentID, dto.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, internal.ErrDuplicateResource.WithDetails("an organization with this name already exists under the same parent")
	}

	status := orgDatamodel.StatusActive
	if dto.Status != "" {
		status = orgDatamodel.Status(dto.Status)
	}
	budget := dto.MonthlyBudget
	if budget == "" {
		budget = "0"
	}

	org := &orgDatamodel.Organization{
		Name:             dto.Name,
		Type:             dto.Type,
		ParentID:         dto.ParentID,
		ManagerUserID:    dto.ManagerUserID,
		Address:          dto.Address,
		Phone:            dto.Phone,
		Email:            dto.Email,
		MonthlyBudget:    budget,
		ApprovalSettings: dto.ApprovalSettings,
		Settings:         dto.Settings,
		CostCenterCode:   dto.CostCenterCode,
		Status:           status,
	}

	if err := s.repo.Create(ctx, org); err != nil {
		s.logger.Error("failed to create organization", "name", dto.Name, "error", err)
		return nil, err
	}

	s.publish(ctx, events.NewOrganizationEvent(events.OrganizationCreated, org.ID, org.ParentID, nil))

	s.logger.Info("organization created", "org_id", org.ID, "name", org.Name)
	return org, nil
}

func (s *Service) Update(ctx context.Context, id string, dto UpdateOrganizationDTO) (*orgDatamodel.Organization, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previousParentID := org.ParentID

	if dto.Name != nil {
		org.Name = *dto.Name
	}
	if dto.Type != nil {
		org.Type = *dto.Type
	}
	if dto.ParentID != nil {
		newParent := *dto.ParentID
		if newParent != nil {
			if *newParent == org.ID {
				return nil, internal.NewValidationError("organization cannot be its own parent", internal.ErrCodeValidationFailed)
			}
			if _, err := s.repo.FindByID(ctx, *newParent); err != nil {
				return nil, err
			}
		}
		org.ParentID = newParent
	}
	if dto.ManagerUserID != nil {
		org.ManagerUserID = dto.ManagerUserID
	}
	if dto.Address != nil {
		org.Address = dto.Address
	}
	if dto.Phone != nil {
		org.Phone = dto.Phone
	}
	if dto.Email != nil {
		org.Email = dto.Email
	}
	if dto.MonthlyBudget != nil {
		org.MonthlyBudget = *dto.MonthlyBudget
	}
	if dto.ApprovalSettings != nil {
		org.ApprovalSettings = dto.ApprovalSettings
	}
	if dto.Settings != nil {
		org.Settings = dto.Settings
	}
	if dto.CostCenterCode != nil {
		org.CostCenterCode = dto.CostCenterCode
	}
	if dto.Status != nil {
		org.Status = orgDatamodel.Status(*dto.Status)
	}

	taken, err := s.repo.SiblingNameExists(ctx, org.ParentID, org.Name, org.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, internal.ErrDuplicateResource.WithDetails("an organization with this name already exists under the same parent")
	}

	if err := s.repo.Update(ctx, org); err != nil {
		s.logger.Error("failed to update organization", "org_id", id, "error", err)
		return nil, err
	}

	var movedFrom *string
	if !equalParent(previousParentID, org.ParentID) {
		movedFrom = previousParentID
	}
	s.publish(ctx, events.NewOrganizationEvent(events.OrganizationUpdated, org.ID, org.ParentID, movedFrom))

	return org, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		s.logger.Error("failed to delete organization", "org_id", id, "error", err)
		return err
	}

	s.publish(ctx, events.NewOrganizationEvent(events.OrganizationDeleted, org.ID, org.ParentID, nil))

	s.logger.Info("organization deleted", "org_id", id)
	return nil
}

func (s *Service) Restore(ctx context.Context, id string) (*orgDatamodel.Organization, error) {
	org, err := s.repo.Restore(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewOrganizationEvent(events.OrganizationRestored, org.ID, org.ParentID, nil))

	s.logger.Info("organization restored", "org_id", id)
	return org, nil
}

// GetOrganizationTree returns the full directory forest. Cache-aside on
// a date-scoped key: reads far outnumber writes, the daily TTL is only a
// safety net under the write-triggered eviction.
func (s *Service) GetOrganizationTree(ctx context.Context) ([]*OrgNode, error) {
	key := TreeCacheKey(s.now())

	if cached, err := s.store.Get(ctx, key); err == nil {
		var forest []*OrgNode
		if jsonErr := json.Unmarshal([]byte(cached), &forest); jsonErr == nil {
			return forest, nil
		}
		// corrupt entry, rebuild below
		_ = s.store.Delete(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("tree cache read failed, falling back to database", "error", err)
	}

	orgs, err := s.repo.AllActiveNodes(ctx)
	if err != nil {
		return nil, err
	}
	forest := BuildForest(orgs)

	if encoded, err := json.Marshal(forest); err == nil {
		if err := s.store.Set(ctx, key, string(encoded), TTLUntilMidnight(s.now())); err != nil {
			s.logger.Warn("failed to populate tree cache", "error", err)
		}
	}

	return forest, nil
}

// GetChildren answers a per-node children query off the cached full tree.
// Full-tree DFS keeps the answer consistent with GetOrganizationTree at
// the cost of an O(tree) walk, fine for trees of hundreds of nodes.
func (s *Service) GetChildren(ctx context.Context, id string) ([]*OrgNode, error) {
	key := ChildrenCacheKey(id, s.now())

	if cached, err := s.store.Get(ctx, key); err == nil {
		var children []*OrgNode
		if jsonErr := json.Unmarshal([]byte(cached), &children); jsonErr == nil {
			return children, nil
		}
		_ = s.store.Delete(ctx, key)
	}

	forest, err := s.GetOrganizationTree(ctx)
	if err != nil {
		return nil, err
	}

	children := []*OrgNode{}
	if node := FindNode(forest, id); node != nil {
		children = node.Children
	}

	if encoded, err := json.Marshal(children); err == nil {
		if err := s.store.Set(ctx, key, string(encoded), TTLUntilMidnight(s.now())); err != nil {
			s.logger.Warn("failed to populate children cache", "org_id", id, "error", err)
		}
	}

	return children, nil
}

func (s *Service) GetUsersWithRoles(ctx context.Context, id string, page, perPage int) (*MemberPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}

	members, total, err := s.repo.MembersWithRoles(ctx, id, page, perPage)
	if err != nil {
		return nil, err
	}

	// An empty first page is ambiguous: no members, or no such org.
	if len(members) == 0 && page == 1 {
		exists, err := s.repo.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, internal.ErrOrganizationNotFound
		}
	}

	if members == nil {
		members = []Member{}
	}
	return &MemberPage{
		Members:    members,
		Page:       page,
		PerPage:    perPage,
		TotalCount: total,
	}, nil
}

func (s *Service) GetStats(ctx context.Context, id string) (*Stats, error) {
	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.CountMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Stats{
		OrganizationID: org.ID,
		MonthlyBudget:  org.MonthlyBudget,
		Members:        members,
		// reimbursement totals need the expense subsystem, always 0 for now
		Reimbursements: 0,
	}, nil
}

// publish runs invalidation handlers synchronously so the cache is
// evicted before the mutating call returns.
func (s *Service) publish(ctx context.Context, event events.OrganizationEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishSync(ctx, event); err != nil {
		s.logger.Error("organization event handlers failed", "event_type", event.Type, "org_id", event.OrganizationID, "error", err)
	}
}

func equalParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
