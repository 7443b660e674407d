package core

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BulkResult is the outcome of one entity of a bulk action. Either Message or Err is set.
type BulkResult struct {
	EntityID uuid.UUID
	Message  string
	Err      error
}

// bulk runs the action once per entity. There is no transaction across the batch, a failing entity doesn't stop the others.
func (c *CoreDB) bulk(ctx context.Context, ids []uuid.UUID, action func(e *Entity) (string, error)) []BulkResult {
	var results = make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		var result = BulkResult{EntityID: id}
		e, err := c.GetEntity(ctx, id)
		if err == nil {
			result.Message, result.Err = action(e)
		} else {
			result.Err = err
		}
		if result.Err != nil && !Expected(result.Err) {
			c.Log().Error("bulk action", zap.Stringer("entity", id), zap.Error(result.Err))
		}
		results = append(results, result)
	}
	return results
}

func (c *CoreDB) BulkApprove(ctx context.Context, ids []uuid.UUID, actor DBUser, reason string) []BulkResult {
	return c.bulk(ctx, ids, func(e *Entity) (string, error) {
		return c.Approve(ctx, e, actor, reason)
	})
}

func (c *CoreDB) BulkReject(ctx context.Context, ids []uuid.UUID, actor DBUser, reason string) []BulkResult {
	return c.bulk(ctx, ids, func(e *Entity) (string, error) {
		return c.Reject(ctx, e, actor, reason)
	})
}

func (c *CoreDB) BulkSetPending(ctx context.Context, ids []uuid.UUID, actor DBUser) []BulkResult {
	return c.bulk(ctx, ids, func(e *Entity) (string, error) {
		return c.SetPending(ctx, e, actor)
	})
}
