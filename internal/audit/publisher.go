package audit

import (
	"context"
	"log/slog"

	"annuaire/pkg/requestcontext"
)

// Store is the append-only persistence contract for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByResource(ctx context.Context, resourceType ResourceType, resourceID string) ([]Event, error)
}

// Sink forwards events to an external system, e.g. a Kafka topic.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher fans events out to the store and an optional sink. Failures
// are logged and swallowed so audit never breaks the emitting operation.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger
}

type Option func(p *Publisher)

func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if p.store != nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit append failed",
				"action", event.Action, "resource_id", event.ResourceID, "error", err)
		}
	}
	if p.sink != nil {
		if err := p.sink.Publish(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink publish failed",
				"action", event.Action, "resource_id", event.ResourceID, "error", err)
		}
	}
}

func (p *Publisher) List(ctx context.Context, resourceType ResourceType, resourceID string) ([]Event, error) {
	return p.store.ListByResource(ctx, resourceType, resourceID)
}
