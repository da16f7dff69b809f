// Package ingest turns raw stream events into at-most-one forwarded event
// per logical identifier within the dedup window. The cache is constructed
// and owned here; nothing else mutates it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/monitoring/metrics"
)

// Sink receives first-seen events in stream order.
type Sink interface {
	HandleEvent(ctx context.Context, event domain.ChainEvent) error
}

// Pipeline dedups and forwards chain events.
type Pipeline struct {
	cache Cache
	sink  Sink
	log   *slog.Logger
}

// New creates a pipeline over the given cache and downstream sink.
func New(cache Cache, sink Sink, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cache: cache,
		sink:  sink,
		log:   log.With("component", "ingest"),
	}
}

// Process handles one raw event. Returns true when the event was first-seen
// and forwarded, false when absorbed as a duplicate. A duplicate is a normal
// outcome, not a failure.
func (p *Pipeline) Process(ctx context.Context, event domain.ChainEvent) (bool, error) {
	key := eventKey(event)

	admitted, err := p.cache.Admit(ctx, key)
	if err != nil {
		// Fail open: double-processing downstream is recoverable, dropping
		// an event is not.
		p.log.Warn("dedup cache unavailable, forwarding without dedup", "key", key, "error", err)
		admitted = true
	}
	if !admitted {
		metrics.EventsDeduplicated.WithLabelValues(string(event.Type)).Inc()
		p.log.Debug("duplicate event absorbed", "key", key)
		return false, nil
	}

	if err := p.sink.HandleEvent(ctx, event); err != nil {
		return true, fmt.Errorf("forward event %s: %w", key, err)
	}

	metrics.EventsProcessed.WithLabelValues(string(event.Type)).Inc()
	return true, nil
}

// eventKey derives the dedup identifier: the deploy hash for deploy-scoped
// events, a type-qualified composite for everything else.
func eventKey(event domain.ChainEvent) string {
	if event.DeployScoped() {
		return event.DeployHash
	}
	if event.BlockHash != "" {
		return fmt.Sprintf("%s:%s", event.Type, event.BlockHash)
	}
	if era, ok := event.Raw["era_id"]; ok {
		return fmt.Sprintf("%s:era:%v", event.Type, era)
	}
	return fmt.Sprintf("%s:%v", event.Type, event.Raw)
}
