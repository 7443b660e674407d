package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// An Entity is the moderation record of a domain object. It refers to the object by (ObjectType, ObjectID) and does not own it.
type Entity struct {
	ID         uuid.UUID
	ObjectType string
	ObjectID   string
	Status     Status
	State      State

	// audit, ModeratorID is zero and DecidedAt is zero while pending
	ModeratorID   int
	ModeratorName string
	Reason        string
	DecidedAt     time.Time

	CreatedAt time.Time
	Prior     Snapshot // moderated fields before the pending change, empty for new objects
}

func (e *Entity) Decided() bool {
	return !e.DecidedAt.IsZero()
}

// Visible returns whether the object shows up in default queries.
func (e *Entity) Visible(visibleUntilRejected bool) bool {
	if e.State == Draft {
		return false
	}
	switch e.Status {
	case Approved:
		return true
	case Pending:
		return visibleUntilRejected
	default:
		return false
	}
}

// A Decision contains the fields which a transition writes. Storage must write them in one statement.
type Decision struct {
	Status        Status
	State         State
	ModeratorID   int
	ModeratorName string
	Reason        string
	DecidedAt     time.Time
	Prior         Snapshot // nil keeps the stored value
}

// apply copies the decision into e. It must only be called after storage succeeded.
func (d Decision) apply(e *Entity) {
	e.Status = d.Status
	e.State = d.State
	e.ModeratorID = d.ModeratorID
	e.ModeratorName = d.ModeratorName
	e.Reason = d.Reason
	e.DecidedAt = d.DecidedAt
	if d.Prior != nil {
		e.Prior = d.Prior
	}
}

// A HistoryEntry records one transition of an entity.
type HistoryEntry struct {
	EntityID  uuid.UUID
	From      Status
	To        Status
	ActorID   int
	ActorName string
	Reason    string
	At        time.Time
}

// QueueFilter restricts the moderation queue. Draft entities are never included.
type QueueFilter struct {
	Statuses []Status // empty means pending and rejected
	Type     string   // empty means all types
}

func (f QueueFilter) EffectiveStatuses() []Status {
	if len(f.Statuses) == 0 {
		return []Status{Pending, Rejected}
	}
	return f.Statuses
}

type EntityDB interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*Entity, error)
	GetEntityFor(ctx context.Context, objectType, objectID string) (*Entity, error)
	InsertEntity(ctx context.Context, e *Entity, h HistoryEntry) error
	Transition(ctx context.Context, e *Entity, d Decision, h HistoryEntry) error
	Queue(ctx context.Context, filter QueueFilter, limit, offset int) ([]*Entity, error)
	CountQueue(ctx context.Context, filter QueueFilter) (int, error)
	History(ctx context.Context, entityID uuid.UUID) ([]HistoryEntry, error)
}

// An Object is the live version of a domain object.
type Object struct {
	Type      string
	ID        string
	Fields    Snapshot
	TsCreated time.Time
	TsChanged time.Time
}

type ObjectDB interface {
	GetObject(ctx context.Context, objectType, id string) (*Object, error)
	SaveObject(ctx context.Context, o *Object) error
	// Underlying returns all objects of a type, regardless of moderation.
	Underlying(ctx context.Context, objectType string) ([]*Object, error)
	// Visible returns the objects which are not draft and approved, or pending if visibleUntilRejected is true.
	// Objects without moderation record are visible.
	Visible(ctx context.Context, objectType string, visibleUntilRejected bool) ([]*Object, error)
}
