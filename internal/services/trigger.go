package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"

	"golang.org/x/sync/singleflight"
)

const (
	// triggerOwners bounds how many owners' last months are remembered.
	triggerOwners = 4096
	triggerTTL    = 24 * time.Hour

	// sharedRunTimeout bounds a shared materialization once it no longer
	// follows any single caller's context.
	sharedRunTimeout = 2 * time.Minute
)

// TriggerCoordinator suppresses repeated materialization of the same
// (owner, month) within one session. Each owner is its own session: the
// coordinator remembers the most recent month attempted per owner, so owners
// sharing one server never evict each other's pair. It is an optimisation:
// correctness comes from the store's uniqueness constraint, so forgetting or
// resetting it is always safe.
//
// Create one with NewTriggerCoordinator. The zero value is not usable.
type TriggerCoordinator struct {
	last  *cache.LRUCache[core.YearMonth]
	group singleflight.Group

	// waiting counts callers currently blocked in Do.
	waiting atomic.Int32
}

func NewTriggerCoordinator() *TriggerCoordinator {
	return &TriggerCoordinator{
		last: cache.NewLRUCache[core.YearMonth](triggerOwners, triggerTTL),
	}
}

// ShouldAttempt reports false only when month is the last month marked as
// attempted for ownerID.
func (c *TriggerCoordinator) ShouldAttempt(ownerID string, month core.YearMonth) bool {
	last, ok := c.last.Get(ownerID)
	return !ok || last != month
}

func (c *TriggerCoordinator) MarkAttempted(ownerID string, month core.YearMonth) {
	c.last.Set(ownerID, month)
}

// ResetOwner forgets the owner's last attempted month, e.g. after the owner
// added a rule.
func (c *TriggerCoordinator) ResetOwner(ownerID string) {
	c.last.Delete(ownerID)
}

// Reset forgets every owner.
func (c *TriggerCoordinator) Reset() {
	c.last.DeletePrefix("")
}

// Do runs fn for (ownerID, month), sharing one execution between concurrent
// callers with the same pair. The pair is marked attempted once fn returns,
// whatever its outcome. shared is true when the result came from another
// caller's execution.
//
// The shared execution is detached from the cancellation of the caller that
// started it, so abandoning a request only ends that caller's wait: Do then
// returns ctx.Err() while the run completes for the others.
func (c *TriggerCoordinator) Do(
	ctx context.Context,
	ownerID string,
	month core.YearMonth,
	fn func(context.Context) (core.ApplyResult, error),
) (result core.ApplyResult, shared bool, err error) {
	key := fmt.Sprintf("%s\x00%s", ownerID, month)

	var ran bool
	runCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		ran = true
		defer c.MarkAttempted(ownerID, month)
		runCtx, cancel := context.WithTimeout(runCtx, sharedRunTimeout)
		defer cancel()
		return fn(runCtx)
	})

	c.waiting.Add(1)
	defer c.waiting.Add(-1)

	select {
	case <-ctx.Done():
		return core.ApplyResult{}, false, ctx.Err()
	case res := <-ch:
		if res.Val != nil {
			result = res.Val.(core.ApplyResult)
		}
		return result, !ran, res.Err
	}
}
