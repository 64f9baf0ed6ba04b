// Package idempotency provides a Redis-backed claim for webhook events so
// the same provider event is processed at most once per TTL window.
package idempotency

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/redis"
)

// Guard claims provider event IDs atomically with SETNX. A claim is held
// for the configured TTL; handlers release it on failure so the provider's
// retry can be processed.
type Guard struct {
	store redis.IdempotencyStore
	scope string
	ttl   time.Duration
}

func NewGuard(store redis.IdempotencyStore, scope string, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency store is required")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency scope is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Guard{store: store, scope: scope, ttl: ttl}, nil
}

// CheckAndMark claims the event ID. It returns true when this caller won
// the claim and false when the event was already seen.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	claimed, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to claim event id")
	}
	return claimed, nil
}

// Delete releases a claim after a handler failure so the event can be
// retried by the provider.
func (g *Guard) Delete(ctx context.Context, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	if err := g.store.Del(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to release event id claim")
	}
	return nil
}
