package organization

import (
	"context"
	"log/slog"
	"time"

	"github.com/ycchuang/org-management/internal/cache"
	"github.com/ycchuang/org-management/internal/core/events"
)

// CacheInvalidator evicts the date-scoped tree keys whenever a node is
// created, updated, deleted or restored. It subscribes to the event bus
// and is invoked synchronously from the mutating service call.
type CacheInvalidator struct {
	store  cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

func NewCacheInvalidator(store cache.Cache, logger *slog.Logger) *CacheInvalidator {
	return &CacheInvalidator{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (ci *CacheInvalidator) Register(bus *events.EventBus) {
	for _, eventType := range []string{
		events.OrganizationCreated,
		events.OrganizationUpdated,
		events.OrganizationDeleted,
		events.OrganizationRestored,
	} {
		bus.Subscribe(eventType, ci.handle)
	}
}

func (ci *CacheInvalidator) handle(ctx context.Context, event events.Event) error {
	orgEvent, ok := event.(events.OrganizationEvent)
	if !ok {
		return nil
	}

	now := ci.now()
	keys := []string{
		TreeCacheKey(now),
		ChildrenCacheKey(orgEvent.OrganizationID, now),
	}
	if orgEvent.ParentID != nil {
		keys = append(keys, ChildrenCacheKey(*orgEvent.ParentID, now))
	}
	// a moved node also leaves its former parent's children list stale
	if orgEvent.PreviousParentID != nil {
		keys = append(keys, ChildrenCacheKey(*orgEvent.PreviousParentID, now))
	}

	for _, key := range keys {
		if err := ci.store.Delete(ctx, key); err != nil {
			ci.logger.Error("failed to evict tree cache key", "key", key, "error", err)
			return err
		}
	}

	ci.logger.Debug("tree cache invalidated", "event_type", orgEvent.Type, "org_id", orgEvent.OrganizationID)
	return nil
}
