package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type blockingConsumer struct{ started chan struct{} }

func (b *blockingConsumer) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct{ err error }

func (f failingConsumer) Run(context.Context) error { return f.err }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestRunStopsOnReadinessFailure(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:          testLogger(),
		Dependencies:    map[string]pinger{"database": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}},
		DependencyOrder: []string{"database", "redis"},
		Consumers:       map[string]consumer{"noop": failingConsumer{}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	err = svc.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis ping failed") {
		t.Fatalf("expected redis readiness failure, got %v", err)
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: map[string]consumer{"orders": failingConsumer{err: boom}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestRunTreatsEarlyCleanExitAsFailure(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: map[string]consumer{"orders": failingConsumer{}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "orders exited") {
		t.Fatalf("expected early exit error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &blockingConsumer{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:    testLogger(),
		Consumers: map[string]consumer{"orders": c},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-c.started:
	case <-time.After(time.Second):
		t.Fatalf("consumer never started")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}

func TestNewServiceRequiresListedDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger:          testLogger(),
		DependencyOrder: []string{"pubsub"},
		Consumers:       map[string]consumer{"orders": failingConsumer{}},
	})
	if err == nil {
		t.Fatalf("expected missing dependency error")
	}
}
