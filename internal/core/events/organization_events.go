package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrganizationCreated  = "organization.created"
	OrganizationUpdated  = "organization.updated"
	OrganizationDeleted  = "organization.deleted"
	OrganizationRestored = "organization.restored"
)

// OrganizationEvent carries the node id plus the parent ids the tree cache
// needs for per-node eviction. PreviousParentID is set on updates that
// moved the node.
type OrganizationEvent struct {
	ID               string
	Type             string
	Timestamp        time.Time
	OrganizationID   string
	ParentID         *string
	PreviousParentID *string
}

func NewOrganizationEvent(eventType, orgID string, parentID, previousParentID *string) OrganizationEvent {
	return OrganizationEvent{
		ID:               uuid.NewString(),
		Type:             eventType,
		Timestamp:        time.Now(),
		OrganizationID:   orgID,
		ParentID:         parentID,
		PreviousParentID: previousParentID,
	}
}

func (e OrganizationEvent) EventType() string     { return e.Type }
func (e OrganizationEvent) EventID() string       { return e.ID }
func (e OrganizationEvent) OccurredAt() time.Time { return e.Timestamp }
func (e OrganizationEvent) Payload() interface{}  { return e }
