package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var (
	alice = &testUser{id: 1, name: "alice"}
	bob   = &testUser{id: 2, name: "bob", staff: true}
	carol = &testUser{id: 3, name: "carol", staff: true}
)

func newTestCoreDB(t *testing.T) (*CoreDB, *memDB) {
	t.Helper()

	reg, err := NewPolicyRegistry(
		&Policy{
			Type:    "article",
			Schema:  Schema{{Name: "title", Type: Text}, {Name: "body", Type: Markdown}},
			Exclude: map[string]struct{}{"updated_at": {}},
		},
		&Policy{
			Type:                 "comment",
			Schema:               Schema{{Name: "text", Type: Text}},
			VisibleUntilRejected: true,
		},
		&Policy{
			Type:                "news",
			Schema:              Schema{{Name: "title", Type: Text}},
			AutoApproveForStaff: true,
		},
	)
	require.NoError(t, err)

	var mem = newMemDB()
	var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	return &CoreDB{
		EntityDB: mem,
		ObjectDB: mem,
		UserDB:   mem,
		Policies: reg,
		Now: func() time.Time {
			now = now.Add(time.Minute)
			return now
		},
	}, mem
}

func submit(t *testing.T, c *CoreDB, objectType, id string, fields Snapshot, actor DBUser) *Entity {
	t.Helper()
	e, _, err := c.Submit(context.Background(), objectType, id, fields, actor, false)
	require.NoError(t, err)
	return e
}

func TestReject(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()
	e := submit(t, c, "article", "a1", Snapshot{"title": "A", "body": "x"}, alice)

	for _, reason := range []string{"", "   "} {
		_, err := c.Reject(ctx, e, bob, reason)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "reason", validationErr.Field)
		assert.Equal(t, Pending, e.Status)
	}

	msg, err := c.Reject(ctx, e, bob, "spam")
	require.NoError(t, err)
	assert.Equal(t, "Object has been rejected by moderator, reason: spam", msg)
	assert.Equal(t, Rejected, e.Status)
	assert.Equal(t, "spam", e.Reason)
	assert.Equal(t, bob.ID(), e.ModeratorID)
	assert.True(t, e.Decided())

	stored, err := c.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Rejected, stored.Status)
	assert.Equal(t, "spam", stored.Reason)
	assert.Equal(t, e.DecidedAt, stored.DecidedAt)
}

func TestApproveThenReject(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()
	e := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)

	msg, err := c.Approve(ctx, e, bob, "")
	require.NoError(t, err)
	assert.Equal(t, "Object has been approved by moderator and is visible on site", msg)
	approvedAt := e.DecidedAt

	_, err = c.Reject(ctx, e, carol, "bad")
	require.NoError(t, err)

	assert.Equal(t, Rejected, e.Status)
	assert.Equal(t, carol.ID(), e.ModeratorID)
	assert.Equal(t, "carol", e.ModeratorName)
	assert.Equal(t, "bad", e.Reason)
	assert.True(t, e.DecidedAt.After(approvedAt))

	history, err := c.History(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, Pending, history[1].From)
	assert.Equal(t, Approved, history[1].To)
	assert.Equal(t, Approved, history[2].From)
	assert.Equal(t, Rejected, history[2].To)
	assert.Equal(t, "bad", history[2].Reason)
}

func TestInvalidTransitions(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()
	var validationErr *ValidationError

	e := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)
	_, err := c.Approve(ctx, e, bob, "")
	require.NoError(t, err)
	_, err = c.Approve(ctx, e, bob, "")
	assert.ErrorAs(t, err, &validationErr)

	_, err = c.Reject(ctx, e, bob, "spam")
	require.NoError(t, err)
	_, err = c.Reject(ctx, e, bob, "spam again")
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "spam", e.Reason)

	// rejected objects can be approved directly
	_, err = c.Approve(ctx, e, bob, "")
	assert.NoError(t, err)
}

func TestNilActor(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()
	e := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)

	var validationErr *ValidationError
	_, err := c.Approve(ctx, e, nil, "")
	assert.ErrorAs(t, err, &validationErr)
	_, err = c.Reject(ctx, e, nil, "spam")
	assert.ErrorAs(t, err, &validationErr)
	_, err = c.SetPending(ctx, e, nil)
	assert.ErrorAs(t, err, &validationErr)
	_, _, err = c.Submit(ctx, "article", "a2", Snapshot{}, nil, false)
	assert.ErrorAs(t, err, &validationErr)

	assert.Equal(t, Pending, e.Status)
}

func TestSetPendingClearsDecision(t *testing.T) {
	tests := []struct {
		name   string
		before func(c *CoreDB, e *Entity) error
	}{
		{"from pending", func(c *CoreDB, e *Entity) error { return nil }},
		{"from approved", func(c *CoreDB, e *Entity) error {
			_, err := c.Approve(context.Background(), e, bob, "")
			return err
		}},
		{"from rejected", func(c *CoreDB, e *Entity) error {
			_, err := c.Reject(context.Background(), e, bob, "spam")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCoreDB(t)
			e := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)
			require.NoError(t, tt.before(c, e))

			msg, err := c.SetPending(context.Background(), e, carol)
			require.NoError(t, err)
			assert.Equal(t, "Object is not viewable on site, it will be visible if moderator accepts it", msg)
			assert.Equal(t, Pending, e.Status)
			assert.True(t, e.DecidedAt.IsZero())
			assert.Zero(t, e.ModeratorID)
			assert.False(t, e.Decided())

			stored, err := c.GetEntity(context.Background(), e.ID)
			require.NoError(t, err)
			assert.True(t, stored.DecidedAt.IsZero())

			history, err := c.History(context.Background(), e.ID)
			require.NoError(t, err)
			assert.Equal(t, "carol", history[len(history)-1].ActorName)
		})
	}
}

func TestTransitionStorageFailure(t *testing.T) {
	c, mem := newTestCoreDB(t)
	e := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)

	errDiskFull := errors.New("disk full")
	mem.failTransition = errDiskFull

	_, err := c.Approve(context.Background(), e, bob, "")
	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, Expected(err))
	assert.Equal(t, Pending, e.Status)
	assert.Zero(t, e.ModeratorID)
	assert.True(t, e.DecidedAt.IsZero())
}

func TestSubmitLifecycle(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	e, msg, err := c.Submit(ctx, "article", "a1", Snapshot{"title": "A", "body": "x"}, alice, false)
	require.NoError(t, err)
	assert.Equal(t, Pending, e.Status)
	assert.Equal(t, "Object is not viewable on site, it will be visible if moderator accepts it", msg)

	visible, err := c.QueryModerated(ctx, "article")
	require.NoError(t, err)
	assert.Empty(t, visible)
	underlying, err := c.QueryUnderlying(ctx, "article")
	require.NoError(t, err)
	assert.Len(t, underlying, 1)

	// new objects are compared with an empty baseline
	changes, _, _, err := c.ChangesFor(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, changes.Fields())

	_, err = c.Approve(ctx, e, bob, "")
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"title": "A", "body": "x"}, e.Prior)
	visible, err = c.QueryModerated(ctx, "article")
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	// edit of an approved object
	e, _, err = c.Submit(ctx, "article", "a1", Snapshot{"title": "B", "body": "x", "updated_at": "today"}, alice, false)
	require.NoError(t, err)
	assert.Equal(t, Pending, e.Status)
	assert.Equal(t, Snapshot{"title": "A", "body": "x"}, e.Prior)

	changes, _, obj, err := c.ChangesFor(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, ChangeSet{{Field: "title", Type: Text, Old: "A", New: "B"}}, changes)
	assert.Equal(t, "B", obj.Fields["title"])

	visible, err = c.QueryModerated(ctx, "article")
	require.NoError(t, err)
	assert.Empty(t, visible)

	// a second edit while pending keeps the baseline
	e, _, err = c.Submit(ctx, "article", "a1", Snapshot{"title": "C", "body": "x"}, alice, false)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"title": "A", "body": "x"}, e.Prior)
}

func TestSubmitUnchangedApprovedObject(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()
	e := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)
	_, err := c.Approve(ctx, e, bob, "")
	require.NoError(t, err)

	before, err := c.History(ctx, e.ID)
	require.NoError(t, err)

	// only an excluded field changes
	e, _, err = c.Submit(ctx, "article", "a1", Snapshot{"title": "A", "updated_at": "today"}, alice, false)
	require.NoError(t, err)
	assert.Equal(t, Approved, e.Status)

	after, err := c.History(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	obj, err := c.GetObject(ctx, "article", "a1")
	require.NoError(t, err)
	assert.Equal(t, "today", obj.Fields["updated_at"])
}

func TestVisibleUntilRejected(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	e, msg, err := c.Submit(ctx, "comment", "c1", Snapshot{"text": "hello"}, alice, false)
	require.NoError(t, err)
	assert.Equal(t, "Object is viewable on site, it will be removed if moderator rejects it", msg)

	visible, err := c.QueryModerated(ctx, "comment")
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	_, err = c.Reject(ctx, e, bob, "spam")
	require.NoError(t, err)
	visible, err = c.QueryModerated(ctx, "comment")
	require.NoError(t, err)
	assert.Empty(t, visible)

	// approve makes it visible again, a later reject hides it
	_, err = c.Approve(ctx, e, bob, "")
	require.NoError(t, err)
	visible, _ = c.QueryModerated(ctx, "comment")
	assert.Len(t, visible, 1)
	_, err = c.Reject(ctx, e, bob, "spam after all")
	require.NoError(t, err)
	visible, _ = c.QueryModerated(ctx, "comment")
	assert.Empty(t, visible)
}

func TestSubmitAutoApproveForStaff(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	e, msg, err := c.Submit(ctx, "news", "n1", Snapshot{"title": "Hi"}, bob, false)
	require.NoError(t, err)
	assert.Equal(t, Approved, e.Status)
	assert.Equal(t, bob.ID(), e.ModeratorID)
	assert.Equal(t, "Object has been approved by moderator and is visible on site", msg)

	e, _, err = c.Submit(ctx, "news", "n2", Snapshot{"title": "Hi"}, alice, false)
	require.NoError(t, err)
	assert.Equal(t, Pending, e.Status)

	// staff drafts are not approved
	e, _, err = c.Submit(ctx, "news", "n3", Snapshot{"title": "Hi"}, bob, true)
	require.NoError(t, err)
	assert.Equal(t, Pending, e.Status)
	assert.Equal(t, Draft, e.State)

	// no auto approval for articles
	e, _, err = c.Submit(ctx, "article", "a1", Snapshot{"title": "Hi"}, bob, false)
	require.NoError(t, err)
	assert.Equal(t, Pending, e.Status)
}

func TestDraftsAreHidden(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	e, _, err := c.Submit(ctx, "comment", "c1", Snapshot{"text": "hello"}, alice, true)
	require.NoError(t, err)
	assert.Equal(t, Draft, e.State)

	queue, err := c.Queue(ctx, QueueFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, queue)

	visible, err := c.QueryModerated(ctx, "comment")
	require.NoError(t, err)
	assert.Empty(t, visible, "drafts are hidden even if visible until rejected")

	// publishing the draft
	e, _, err = c.Submit(ctx, "comment", "c1", Snapshot{"text": "hello"}, alice, false)
	require.NoError(t, err)
	assert.Equal(t, Normal, e.State)
	count, err := c.CountQueue(ctx, QueueFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestApproveDraft(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	e, _, err := c.Submit(ctx, "article", "a1", Snapshot{"title": "A"}, alice, true)
	require.NoError(t, err)

	_, err = c.Approve(ctx, e, bob, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "state", verr.Field)
	assert.Equal(t, Pending, e.Status)

	stored, err := c.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Pending, stored.Status)
	assert.Equal(t, Draft, stored.State)
}

func TestSubmitUnencodableFields(t *testing.T) {
	c, mem := newTestCoreDB(t)
	ctx := context.Background()

	_, _, err := c.Submit(ctx, "article", "a1", Snapshot{"title": "A", "rating": math.NaN()}, alice, false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, Expected(err))

	_, err = c.GetEntityFor(ctx, "article", "a1")
	assert.True(t, IsNotFound(err))
	assert.Empty(t, mem.history)

	// an approved object keeps its status and content
	e := submit(t, c, "article", "a2", Snapshot{"title": "B"}, alice)
	_, err = c.Approve(ctx, e, bob, "")
	require.NoError(t, err)

	_, _, err = c.Submit(ctx, "article", "a2", Snapshot{"title": "C", "rating": math.Inf(-1)}, alice, false)
	require.ErrorAs(t, err, &verr)

	stored, err := c.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Approved, stored.Status)
	obj, err := c.GetObject(ctx, "article", "a2")
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"title": "B"}, obj.Fields)
}

func TestSubmitUnregistered(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	e, msg, err := c.Submit(ctx, "poll", "p1", Snapshot{"question": "?"}, alice, false)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, "This object is not registered with the moderation system.", msg)

	visible, err := c.QueryModerated(ctx, "poll")
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	_, _, _, err = c.ChangesFor(ctx, &Entity{ObjectType: "poll", ObjectID: "p1"})
	assert.True(t, IsNotRegistered(err))
}

func TestStatusMessage(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()
	e := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)
	_, err := c.Reject(ctx, e, bob, "spam")
	require.NoError(t, err)

	tests := []struct {
		name       string
		ctx        context.Context
		objectType string
		objectID   string
		want       string
	}{
		{"unregistered type", ctx, "poll", "p1", "This object is not registered with the moderation system."},
		{"no record", ctx, "article", "a2", "This object is not registered with the moderation system."},
		{"rejected", ctx, "article", "a1", "Object has been rejected by moderator, reason: spam"},
		{"rejected german", WithPrinter(ctx, NewPrinter(language.German)), "article", "a1", "Das Objekt wurde von einem Moderator abgelehnt, Grund: spam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := c.StatusMessage(tt.ctx, tt.objectType, tt.objectID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestQueue(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	a1 := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)
	a2 := submit(t, c, "article", "a2", Snapshot{"title": "A"}, alice)
	c1 := submit(t, c, "comment", "c1", Snapshot{"text": "A"}, alice)

	_, err := c.Approve(ctx, a2, bob, "")
	require.NoError(t, err)
	_, err = c.Reject(ctx, c1, bob, "spam")
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter QueueFilter
		want   []uuid.UUID
	}{
		{"default", QueueFilter{}, []uuid.UUID{a1.ID, c1.ID}},
		{"rejected", QueueFilter{Statuses: []Status{Rejected}}, []uuid.UUID{c1.ID}},
		{"articles", QueueFilter{Type: "article"}, []uuid.UUID{a1.ID}},
		{"approved", QueueFilter{Statuses: []Status{Approved}}, []uuid.UUID{a2.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities, err := c.Queue(ctx, tt.filter, 10, 0)
			require.NoError(t, err)
			var ids = []uuid.UUID{}
			for _, e := range entities {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestBulk(t *testing.T) {
	c, _ := newTestCoreDB(t)
	ctx := context.Background()

	a1 := submit(t, c, "article", "a1", Snapshot{"title": "A"}, alice)
	a2 := submit(t, c, "article", "a2", Snapshot{"title": "B"}, alice)
	missing := uuid.New()
	ids := []uuid.UUID{a1.ID, missing, a2.ID}

	results := c.BulkReject(ctx, ids, bob, "")
	require.Len(t, results, 3)
	for _, result := range results {
		assert.Error(t, result.Err)
	}

	results = c.BulkReject(ctx, ids, bob, "spam")
	require.Len(t, results, 3)
	assert.Equal(t, a1.ID, results[0].EntityID)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "Object has been rejected by moderator, reason: spam", results[0].Message)
	assert.True(t, IsNotFound(results[1].Err))
	assert.NoError(t, results[2].Err)

	results = c.BulkApprove(ctx, []uuid.UUID{a1.ID}, bob, "")
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	results = c.BulkSetPending(ctx, []uuid.UUID{a1.ID, a2.ID}, carol)
	for _, result := range results {
		assert.NoError(t, result.Err)
	}

	count, err := c.CountQueue(ctx, QueueFilter{Statuses: []Status{Pending}})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSetPasswordRejectsEmpty(t *testing.T) {
	c, _ := newTestCoreDB(t)
	assert.ErrorIs(t, c.SetPassword(context.Background(), alice, ""), ErrEmptyPassword)
}
