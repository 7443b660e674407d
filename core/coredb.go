package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CoreDB struct {
	EntityDB
	ObjectDB
	UserDB
	Policies       *PolicyRegistry
	SessionManager *scs.SessionManager
	Logger         *zap.Logger
	Now            func() time.Time // can be replaced in tests
}

func (c *CoreDB) Init(sessionStore scs.Store, cookiePath string) error {

	if c.Policies == nil {
		return fmt.Errorf("no policy registry")
	}

	c.SessionManager = scs.New()
	c.SessionManager.Store = sessionStore
	c.SessionManager.Cookie.Path = cookiePath + "/"         // 'The default value is "/". Passing the empty string "" will result in it being set to the path that the cookie was issued from.'
	c.SessionManager.Cookie.Persist = false                 // Don't store cookie across browser sessions.
	c.SessionManager.Cookie.SameSite = http.SameSiteLaxMode // good CSRF protection if HTTP GET doesn't modify anything
	c.SessionManager.Cookie.Secure = false                  // else running on localhost or behind a http proxy fails
	c.SessionManager.IdleTimeout = 12 * time.Hour
	c.SessionManager.Lifetime = 720 * time.Hour

	c.Log().Info("moderation enabled", zap.Strings("types", c.Policies.All()))
	return nil
}

// Log returns the logger, or a no-op logger if none is set.
func (c *CoreDB) Log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *CoreDB) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func requireActor(actor DBUser) error {
	if actor == nil {
		return &ValidationError{Field: "moderator", Message: "no moderator given"}
	}
	return nil
}

// transition writes the decision and a history entry, then updates e.
func (c *CoreDB) transition(ctx context.Context, e *Entity, d Decision, actor DBUser) error {

	var h = HistoryEntry{
		EntityID:  e.ID,
		From:      e.Status,
		To:        d.Status,
		ActorID:   actor.ID(),
		ActorName: actor.Name(),
		Reason:    d.Reason,
		At:        c.now(),
	}

	if err := c.EntityDB.Transition(ctx, e, d, h); err != nil {
		return fmt.Errorf("setting entity %s to %s: %w", e.ID, d.Status, err)
	}

	d.apply(e)

	transitionsTotal.WithLabelValues(e.ObjectType, d.Status.String()).Inc()

	c.Log().Info(
		"moderation transition",
		zap.Stringer("entity", e.ID),
		zap.String("type", e.ObjectType),
		zap.String("object", e.ObjectID),
		zap.Stringer("from", h.From),
		zap.Stringer("to", h.To),
		zap.String("actor", h.ActorName),
	)

	return nil
}

// Approve is valid from Pending and Rejected, but not for drafts. The current object becomes the baseline for future change sets.
func (c *CoreDB) Approve(ctx context.Context, e *Entity, actor DBUser, reason string) (string, error) {

	if err := requireActor(actor); err != nil {
		return "", err
	}

	if e.Status == Approved {
		return "", &ValidationError{Field: "status", Message: "object is already approved"}
	}

	if e.State == Draft {
		return "", &ValidationError{Field: "state", Message: "a draft can't be approved"}
	}

	policy, err := c.Policies.Lookup(e.ObjectType)
	if err != nil {
		return "", err
	}

	obj, err := c.GetObject(ctx, e.ObjectType, e.ObjectID)
	if err != nil {
		return "", err
	}

	var d = Decision{
		Status:        Approved,
		State:         e.State,
		ModeratorID:   actor.ID(),
		ModeratorName: actor.Name(),
		Reason:        strings.TrimSpace(reason),
		DecidedAt:     c.now(),
		Prior:         obj.Fields.Clone(),
	}

	if err := c.transition(ctx, e, d, actor); err != nil {
		return "", err
	}

	return Message(PrinterFrom(ctx), e.Status, e.Reason, policy.VisibleUntilRejected), nil
}

// Reject is valid from Pending and Approved and requires a reason.
func (c *CoreDB) Reject(ctx context.Context, e *Entity, actor DBUser, reason string) (string, error) {

	if err := requireActor(actor); err != nil {
		return "", err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", &ValidationError{Field: "reason", Message: "a reason is required to reject an object"}
	}

	if e.Status == Rejected {
		return "", &ValidationError{Field: "status", Message: "object is already rejected"}
	}

	policy, err := c.Policies.Lookup(e.ObjectType)
	if err != nil {
		return "", err
	}

	var d = Decision{
		Status:        Rejected,
		State:         e.State,
		ModeratorID:   actor.ID(),
		ModeratorName: actor.Name(),
		Reason:        reason,
		DecidedAt:     c.now(),
	}

	if err := c.transition(ctx, e, d, actor); err != nil {
		return "", err
	}

	return Message(PrinterFrom(ctx), e.Status, e.Reason, policy.VisibleUntilRejected), nil
}

// SetPending re-queues an entity from any state. The decision time and the moderator are cleared, the actor is kept in the history.
func (c *CoreDB) SetPending(ctx context.Context, e *Entity, actor DBUser) (string, error) {

	if err := requireActor(actor); err != nil {
		return "", err
	}

	policy, err := c.Policies.Lookup(e.ObjectType)
	if err != nil {
		return "", err
	}

	var d = Decision{
		Status: Pending,
		State:  e.State,
		Reason: e.Reason,
	}

	if err := c.transition(ctx, e, d, actor); err != nil {
		return "", err
	}

	return Message(PrinterFrom(ctx), e.Status, e.Reason, policy.VisibleUntilRejected), nil
}

// Submit saves a domain object and puts it under moderation (automoderate).
//
// Objects of unregistered types are saved without moderation and a nil entity is returned.
// Staff members are approved at once if the policy says so, unless they save a draft.
func (c *CoreDB) Submit(ctx context.Context, objectType, objectID string, fields Snapshot, actor DBUser, draft bool) (*Entity, string, error) {

	if err := requireActor(actor); err != nil {
		return nil, "", err
	}

	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return nil, "", &ValidationError{Field: "id", Message: "object id can't be empty"}
	}

	// the entity must not be written if the object can't be stored
	if _, err := fields.Encode(); err != nil {
		return nil, "", &ValidationError{Field: "fields", Message: err.Error()}
	}

	var obj = &Object{
		Type:   objectType,
		ID:     objectID,
		Fields: fields,
	}

	policy, err := c.Policies.Lookup(objectType)
	if IsNotRegistered(err) {
		if err := c.SaveObject(ctx, obj); err != nil {
			return nil, "", err
		}
		return nil, Message(PrinterFrom(ctx), NotRegistered, "", false), nil
	}
	if err != nil {
		return nil, "", err
	}

	existing, err := c.GetObject(ctx, objectType, objectID)
	if err != nil && !IsNotFound(err) {
		return nil, "", err
	}

	var state = Normal
	if draft {
		state = Draft
	}

	e, err := c.GetEntityFor(ctx, objectType, objectID)
	switch {
	case IsNotFound(err):
		var prior = Snapshot{}
		if existing != nil {
			prior = existing.Fields.Clone() // object existed before it was moderated
		}
		e = &Entity{
			ID:         uuid.New(),
			ObjectType: objectType,
			ObjectID:   objectID,
			Status:     Pending,
			State:      state,
			CreatedAt:  c.now(),
			Prior:      prior,
		}
		if err := c.InsertEntity(ctx, e, HistoryEntry{
			EntityID:  e.ID,
			From:      Pending,
			To:        Pending,
			ActorID:   actor.ID(),
			ActorName: actor.Name(),
			At:        e.CreatedAt,
		}); err != nil {
			return nil, "", err
		}
	case err != nil:
		return nil, "", err
	default:
		if e.Status == Approved && e.State == state && existing != nil && len(Changes(policy.Schema, existing.Fields, fields, policy.Exclude)) == 0 {
			// nothing to moderate, but excluded fields might have changed
			if err := c.SaveObject(ctx, obj); err != nil {
				return nil, "", err
			}
			return e, Message(PrinterFrom(ctx), e.Status, e.Reason, policy.VisibleUntilRejected), nil
		}
		var prior Snapshot // keep the stored baseline unless the object is approved now
		if e.Status == Approved && existing != nil {
			prior = existing.Fields.Clone()
		}
		if err := c.transition(ctx, e, Decision{Status: Pending, State: state, Prior: prior}, actor); err != nil {
			return nil, "", err
		}
	}

	// save after the entity is pending, so a hidden change is never visible
	if err := c.SaveObject(ctx, obj); err != nil {
		return nil, "", err
	}

	if policy.AutoApproveForStaff && actor.IsStaff() && state == Normal {
		msg, err := c.Approve(ctx, e, actor, "")
		return e, msg, err
	}

	return e, Message(PrinterFrom(ctx), e.Status, e.Reason, policy.VisibleUntilRejected), nil
}

// ChangesFor compares the entity's baseline with the current object.
func (c *CoreDB) ChangesFor(ctx context.Context, e *Entity) (ChangeSet, *Policy, *Object, error) {

	policy, err := c.Policies.Lookup(e.ObjectType)
	if err != nil {
		return nil, nil, nil, err
	}

	obj, err := c.GetObject(ctx, e.ObjectType, e.ObjectID)
	if err != nil {
		return nil, nil, nil, err
	}

	return Changes(policy.Schema, e.Prior, obj.Fields, policy.Exclude), policy, obj, nil
}

// StatusMessage describes the moderation status of an object. Unregistered types and objects without moderation record get the "not registered" message.
func (c *CoreDB) StatusMessage(ctx context.Context, objectType, objectID string) (string, error) {

	var p = PrinterFrom(ctx)

	policy, err := c.Policies.Lookup(objectType)
	if IsNotRegistered(err) {
		return Message(p, NotRegistered, "", false), nil
	}
	if err != nil {
		return "", err
	}

	e, err := c.GetEntityFor(ctx, objectType, objectID)
	if IsNotFound(err) {
		return Message(p, NotRegistered, "", false), nil
	}
	if err != nil {
		return "", err
	}

	return Message(p, e.Status, e.Reason, policy.VisibleUntilRejected), nil
}

// QueryModerated returns the objects of a type which are visible to the public.
func (c *CoreDB) QueryModerated(ctx context.Context, objectType string) ([]*Object, error) {
	policy, err := c.Policies.Lookup(objectType)
	if IsNotRegistered(err) {
		return c.ObjectDB.Underlying(ctx, objectType)
	}
	if err != nil {
		return nil, err
	}
	return c.ObjectDB.Visible(ctx, objectType, policy.VisibleUntilRejected)
}

// QueryUnderlying returns all objects of a type, including pending, rejected and draft ones.
func (c *CoreDB) QueryUnderlying(ctx context.Context, objectType string) ([]*Object, error) {
	return c.ObjectDB.Underlying(ctx, objectType)
}
