// Package audit maintains the registry of real-time subscribers and delivers
// proof-carrying audit events to the ones whose filter matches.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/monitoring/metrics"
)

// DeliverFunc pushes one audit event to a subscriber's transport.
type DeliverFunc func(ctx context.Context, event domain.AuditEvent) error

// Options adjust a subscription at registration time.
type Options struct {
	// InstanceFilter restricts delivery to events of one workflow instance.
	// Empty means deliver everything.
	InstanceFilter string
}

type subscription struct {
	id             string
	deliver        DeliverFunc
	instanceFilter string
}

// Mirror receives a copy of every emitted audit event, independent of the
// subscriber registry (e.g. a message-bus publisher).
type Mirror interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

// Broadcaster owns the subscriber registry. All mutation goes through
// Register/Unregister; Unregister is synchronous — once it returns, the
// client's deliver callback is never invoked again.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]*subscription

	delivered atomic.Uint64
	failed    atomic.Uint64

	mirror Mirror // optional
	log    *slog.Logger
}

// Metrics is a snapshot of broadcaster counters.
type Metrics struct {
	ConnectedClients int    `json:"connectedClients"`
	Delivered        uint64 `json:"delivered"`
	Failed           uint64 `json:"failed"`
}

// NewBroadcaster creates an empty registry. mirror may be nil.
func NewBroadcaster(mirror Mirror, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]*subscription),
		mirror: mirror,
		log:    log.With("component", "broadcaster"),
	}
}

// Register inserts or overwrites the subscription for clientID.
func (b *Broadcaster) Register(clientID string, deliver DeliverFunc, opts Options) {
	b.mu.Lock()
	b.subs[clientID] = &subscription{
		id:             clientID,
		deliver:        deliver,
		instanceFilter: opts.InstanceFilter,
	}
	size := len(b.subs)
	b.mu.Unlock()

	metrics.ConnectedClients.Set(float64(size))
	b.log.Debug("client registered", "client_id", clientID, "instance_filter", opts.InstanceFilter)
}

// Unregister removes the subscription. Blocks until any in-flight emit has
// finished, so no delivery happens after return.
func (b *Broadcaster) Unregister(clientID string) {
	b.mu.Lock()
	delete(b.subs, clientID)
	size := len(b.subs)
	b.mu.Unlock()

	metrics.ConnectedClients.Set(float64(size))
	b.log.Debug("client unregistered", "client_id", clientID)
}

// Emit delivers the event to every registered subscriber whose filter
// matches. One subscriber failing never blocks delivery to the others.
func (b *Broadcaster) Emit(ctx context.Context, event domain.AuditEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.instanceFilter != "" && sub.instanceFilter != event.InstanceID {
			metrics.AuditDeliveries.WithLabelValues("filtered").Inc()
			continue
		}
		b.deliverOne(ctx, sub, event)
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(ctx, event); err != nil {
			b.log.Warn("audit mirror publish failed", "instance_id", event.InstanceID, "error", err)
		}
	}
}

// deliverOne isolates a single subscriber: errors and panics are counted and
// logged, never propagated.
func (b *Broadcaster) deliverOne(ctx context.Context, sub *subscription, event domain.AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.failed.Add(1)
			metrics.AuditDeliveries.WithLabelValues("failed").Inc()
			b.log.Error("subscriber delivery panicked", "client_id", sub.id, "panic", r)
		}
	}()

	if err := sub.deliver(ctx, event); err != nil {
		b.failed.Add(1)
		metrics.AuditDeliveries.WithLabelValues("failed").Inc()
		b.log.Warn("subscriber delivery failed", "client_id", sub.id, "error", err)
		return
	}

	b.delivered.Add(1)
	metrics.AuditDeliveries.WithLabelValues("delivered").Inc()
}

// Metrics returns current registry size and delivery counters.
func (b *Broadcaster) Metrics() Metrics {
	b.mu.RLock()
	size := len(b.subs)
	b.mu.RUnlock()

	return Metrics{
		ConnectedClients: size,
		Delivered:        b.delivered.Load(),
		Failed:           b.failed.Load(),
	}
}
