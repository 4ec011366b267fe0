// Package idempotency keeps outbox consumers from applying an event twice.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorpay-backend/pkg/redis"
)

// processedScope prefixes every claim: vp:idempotency:evt:processed:<consumer>:<event_id>.
const processedScope = "evt:processed:"

var (
	ErrConsumerRequired = errors.New("consumer name is required")
	ErrEventIDRequired  = errors.New("event id is required")
)

// EventGuard records which consumer has claimed which event. A claim lives
// for ttl; zero keeps it until released.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &EventGuard{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim reports whether consumer is the first to see eventID. A false result
// with a nil error means the event was already handled.
func (g *EventGuard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
}

// Release drops a claim so a redelivery is processed again.
func (g *EventGuard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *EventGuard) key(consumer string, eventID uuid.UUID) (string, error) {
	consumer = strings.TrimSpace(consumer)
	switch {
	case consumer == "":
		return "", ErrConsumerRequired
	case eventID == uuid.Nil:
		return "", ErrEventIDRequired
	}
	return g.store.IdempotencyKey(processedScope+consumer, eventID.String()), nil
}
