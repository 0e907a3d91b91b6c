package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	publishTimeout     = 15 * time.Second
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

// sink is a message transport. Both the Pub/Sub client and the Kafka
// producer satisfy it.
type sink interface {
	Publish(ctx context.Context, topic string, key string, data []byte, attrs map[string]string) (string, error)
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	DeadLetter(ctx context.Context, event models.OutboxEvent, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	Sink       sink
	SinkName   string
	Repository outboxRepository
	Registry   registryResolver
	Metrics    *metrics.OutboxMetrics
}

// Service drains the outbox table into the configured sink.
type Service struct {
	logg        *logger.Logger
	db          pinger
	sink        sink
	sinkName    string
	repo        outboxRepository
	registry    registryResolver
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
	jitter      *rand.Rand
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Sink == nil:
		return nil, errors.New("event sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	cfg := params.Config.Outbox
	svc := &Service{
		logg:        params.Logger,
		db:          params.DB,
		sink:        params.Sink,
		sinkName:    params.SinkName,
		repo:        params.Repository,
		registry:    params.Registry,
		metrics:     params.Metrics,
		batchSize:   positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		poll:        defaultPoll,
		jitter:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
	if cfg.PollIntervalMS > 0 {
		svc.poll = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	if svc.sinkName == "" {
		svc.sinkName = cfg.Sink
	}
	return svc, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next one; an empty batch waits one poll interval; a failed batch
// backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	delay := s.poll
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			delay = nextBackoff(delay, s.poll, maxBackoff)
		case processed:
			delay = s.poll
			continue
		default:
			delay = s.poll
		}

		if err := s.wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Service) checkDependencies(ctx context.Context) error {
	deps := map[string]pinger{"database": s.db}
	if p, ok := s.sink.(pinger); ok {
		deps[s.sinkName] = p
	}
	for name, dep := range deps {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// processBatch delivers one page of pending rows. Every row is attempted;
// bookkeeping errors are collected and returned together.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(ctx, s.batchSize)
	if err != nil {
		return false, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}

	var errs error
	for _, event := range events {
		errs = multierr.Append(errs, s.handle(ctx, event))
	}
	return true, errs
}

func (s *Service) handle(ctx context.Context, event models.OutboxEvent) error {
	fields := s.eventFields(event)

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	result, pubErr := s.deliver(ctx, event, resolved)
	switch result {
	case outcomePublished:
		if err := s.repo.MarkPublished(ctx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(s.sinkName)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil

	case outcomeDeadLetter:
		s.metrics.IncFailed(s.sinkName)
		reason := enums.OutboxDLQReasonNonRetryable
		var nonRetry registry.NonRetryableError
		if !errors.As(pubErr, &nonRetry) {
			reason = enums.OutboxDLQReasonMaxAttempts
			pubErr = fmt.Errorf("max publish attempts reached: %w", pubErr)
		}
		return s.deadLetter(ctx, event, reason, pubErr, fields)

	default:
		s.metrics.IncFailed(s.sinkName)
		fields["attempt_count"] = event.AttemptCount + 1
		fields["error"] = pubErr.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
		if err := s.repo.MarkFailed(ctx, event.ID, pubErr); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		return nil
	}
}

// deliver hands the payload to the sink and classifies the result.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) (outcome, error) {
	topic := resolved.Descriptor.Topic
	if topic == "" {
		return outcomeDeadLetter, registry.NewNonRetryableError(fmt.Errorf("no topic configured for %s", event.EventType))
	}

	key := event.AggregateID.String()
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   key,
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := s.sink.Publish(publishCtx, topic, key, event.Payload, attrs); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) || event.AttemptCount+1 >= s.maxAttempts {
			return outcomeDeadLetter, err
		}
		return outcomeRetry, err
	}
	return outcomePublished, nil
}

func (s *Service) deadLetter(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.repo.DeadLetter(ctx, event, entry); err != nil {
		return fmt.Errorf("dead-letter %s: %w", event.ID, err)
	}
	s.metrics.IncDeadLettered()
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"sink":           s.sinkName,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	d += time.Duration(s.jitter.Int63n(int64(jitterWindow)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextBackoff doubles current, starting from base, and caps it at limit.
func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < limit {
		return next
	}
	return limit
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
