package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/vendorpay-backend/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

// consumer is a long-running subscription loop.
type consumer interface {
	Run(ctx context.Context) error
}

type pinger interface {
	Ping(context.Context) error
}

type ServiceParams struct {
	Logger *logger.Logger
	// Dependencies are pinged once, in order, before any consumer starts.
	Dependencies    map[string]pinger
	DependencyOrder []string
	Consumers       map[string]consumer
}

// Service runs every consumer until the first one fails or ctx is cancelled.
type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	depOrder  []string
	consumers map[string]consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for _, name := range params.DependencyOrder {
		if params.Dependencies[name] == nil {
			return nil, fmt.Errorf("%s client is required", name)
		}
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		depOrder:  params.DependencyOrder,
		consumers: params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, name := range s.depOrder {
		if err := s.deps[name].Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

type consumerExit struct {
	name string
	err  error
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	exits := make(chan consumerExit, len(s.consumers))
	for name, c := range s.consumers {
		go func(name string, c consumer) {
			s.logg.Info(s.logg.WithField(runCtx, "consumer", name), "consumer.start")
			exits <- consumerExit{name: name, err: c.Run(runCtx)}
		}(name, c)
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case exit := <-exits:
			exitCtx := s.logg.WithField(ctx, "consumer", exit.name)
			if exit.err != nil && !errors.Is(exit.err, context.Canceled) {
				s.logg.Error(exitCtx, "consumer stopped unexpectedly", exit.err)
				return exit.err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A clean return while the worker is live means the receiver is gone.
			err := fmt.Errorf("consumer %s exited", exit.name)
			s.logg.Error(exitCtx, "consumer exited early", err)
			return err
		case <-ticker.C:
			s.logg.Debug(ctx, "worker.heartbeat")
		}
	}
}
