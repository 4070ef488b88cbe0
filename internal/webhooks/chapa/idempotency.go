package chapawebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/printshop-backend/pkg/redis"
)

var errEmptyDeliveryKey = errors.New("delivery key is required")

// IdempotencyGuard remembers webhook deliveries in Redis for ttl so a
// redelivered event is acknowledged without running fulfillment twice.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
	now   func() time.Time
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	case scope == "":
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope, now: time.Now}, nil
}

func (g *IdempotencyGuard) key(delivery string) (string, error) {
	if delivery == "" {
		return "", errEmptyDeliveryKey
	}
	return g.store.IdempotencyKey(g.scope, delivery), nil
}

// CheckAndMark reports true when an earlier delivery already claimed the key.
// The stored value is the first-seen timestamp, which is only useful when debugging.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, delivery string) (bool, error) {
	k, err := g.key(delivery)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, k, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim delivery %s: %w", delivery, err)
	}
	return !claimed, nil
}

// Release drops the claim so the processor's next retry is handled.
func (g *IdempotencyGuard) Release(ctx context.Context, delivery string) error {
	k, err := g.key(delivery)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, k)
}
