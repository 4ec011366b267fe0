package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	claimed  map[string]any
	ttls     map[string]time.Duration
	setNXErr error
	deleted  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{claimed: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, _ := f.claimed[key].(string)
	return v, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setNXErr != nil {
		return false, f.setNXErr
	}
	if _, ok := f.claimed[key]; ok {
		return false, nil
	}
	f.claimed[key] = value
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "vp:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.claimed, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func TestClaimThenDuplicate(t *testing.T) {
	store := newFakeStore()
	guard, err := NewEventGuard(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewEventGuard: %v", err)
	}
	guard.now = func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) }

	eventID := uuid.New()
	first, err := guard.Claim(context.Background(), "order-notifications", eventID)
	if err != nil || !first {
		t.Fatalf("expected first claim, got %v %v", first, err)
	}
	again, err := guard.Claim(context.Background(), "order-notifications", eventID)
	if err != nil || again {
		t.Fatalf("expected duplicate, got %v %v", again, err)
	}

	key := "vp:idempotency:evt:processed:order-notifications:" + eventID.String()
	if store.claimed[key] != "2026-01-05T09:00:00Z" {
		t.Fatalf("unexpected claim value %v", store.claimed[key])
	}
	if store.ttls[key] != 24*time.Hour {
		t.Fatalf("unexpected ttl %v", store.ttls[key])
	}
}

func TestClaimIsScopedPerConsumer(t *testing.T) {
	guard, _ := NewEventGuard(newFakeStore(), time.Hour)
	eventID := uuid.New()
	if ok, _ := guard.Claim(context.Background(), "order-notifications", eventID); !ok {
		t.Fatal("expected claim for first consumer")
	}
	if ok, _ := guard.Claim(context.Background(), "vendor-digest", eventID); !ok {
		t.Fatal("another consumer must claim independently")
	}
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	store := newFakeStore()
	guard, _ := NewEventGuard(store, time.Hour)
	eventID := uuid.New()

	_, _ = guard.Claim(context.Background(), "order-notifications", eventID)
	if err := guard.Release(context.Background(), "order-notifications", eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected one deleted key, got %v", store.deleted)
	}
	if ok, _ := guard.Claim(context.Background(), "order-notifications", eventID); !ok {
		t.Fatal("expected claim after release")
	}
}

func TestClaimErrors(t *testing.T) {
	if _, err := NewEventGuard(nil, time.Hour); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := NewEventGuard(newFakeStore(), -time.Second); err == nil {
		t.Fatal("expected ttl error")
	}

	guard, _ := NewEventGuard(newFakeStore(), time.Hour)
	if _, err := guard.Claim(context.Background(), " ", uuid.New()); !errors.Is(err, ErrConsumerRequired) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if _, err := guard.Claim(context.Background(), "c", uuid.Nil); !errors.Is(err, ErrEventIDRequired) {
		t.Fatalf("expected event id error, got %v", err)
	}

	store := newFakeStore()
	store.setNXErr = errors.New("redis down")
	guard, _ = NewEventGuard(store, time.Hour)
	if _, err := guard.Claim(context.Background(), "c", uuid.New()); err == nil {
		t.Fatal("expected store error to surface")
	}
}
