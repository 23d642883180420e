package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type dependency struct {
	name string
	ping pinger
}

type ServiceParams struct {
	Logger    *logger.Logger
	DB        pinger
	Redis     pinger
	PubSub    pinger
	BigQuery  pinger
	Consumers map[string]runner
}

// Service runs the domain event consumers until the context is canceled or
// one of them fails.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumers map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, consumer := range params.Consumers {
		if consumer == nil {
			return nil, fmt.Errorf("consumer %q is nil", name)
		}
	}

	deps := []dependency{
		{name: "database", ping: params.DB},
		{name: "redis", ping: params.Redis},
		{name: "pubsub", ping: params.PubSub},
	}
	// optional: only set when the analytics sink is enabled
	if params.BigQuery != nil {
		deps = append(deps, dependency{name: "bigquery", ping: params.BigQuery})
	}

	return &Service{
		logg:      params.Logger,
		deps:      deps,
		consumers: params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.consumers))
	for name, consumer := range s.consumers {
		go func(name string, consumer runner) {
			results <- result{name: name, err: consumer.Run(ctx)}
		}(name, consumer)
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case res := <-results:
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			s.logg.Error(s.logg.WithField(ctx, "consumer", res.name), "consumer stopped unexpectedly", res.err)
			return fmt.Errorf("consumer %s: %w", res.name, res.err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("consumer %s exited", res.name)
	}
}
