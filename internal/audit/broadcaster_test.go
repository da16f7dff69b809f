package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recorder) deliver(_ context.Context, event domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func auditEvent(instanceID string) domain.AuditEvent {
	return domain.AuditEvent{
		Type:       "workflow.transition",
		InstanceID: instanceID,
		Transition: domain.Transition{TransitionID: "tr-1", InstanceID: instanceID},
	}
}

func TestBroadcaster_DeliversToAllUnfiltered(t *testing.T) {
	b := NewBroadcaster(nil, discardLogger())
	a, c := &recorder{}, &recorder{}
	b.Register("client-a", a.deliver, Options{})
	b.Register("client-c", c.deliver, Options{})

	b.Emit(context.Background(), auditEvent("wf-1"))

	if a.count() != 1 || c.count() != 1 {
		t.Errorf("deliveries = (%d, %d), want (1, 1)", a.count(), c.count())
	}
}

func TestBroadcaster_InstanceFilter(t *testing.T) {
	b := NewBroadcaster(nil, discardLogger())
	all, only42 := &recorder{}, &recorder{}
	b.Register("all", all.deliver, Options{})
	b.Register("only-42", only42.deliver, Options{InstanceFilter: "wf-42"})

	b.Emit(context.Background(), auditEvent("wf-42"))
	b.Emit(context.Background(), auditEvent("wf-99"))

	if all.count() != 2 {
		t.Errorf("unfiltered client got %d events, want 2", all.count())
	}
	if only42.count() != 1 {
		t.Errorf("filtered client got %d events, want 1", only42.count())
	}
	only42.mu.Lock()
	got := only42.events[0].InstanceID
	only42.mu.Unlock()
	if got != "wf-42" {
		t.Errorf("filtered client received instance %q, want wf-42", got)
	}
}

func TestBroadcaster_UnregisterStopsDelivery(t *testing.T) {
	b := NewBroadcaster(nil, discardLogger())
	r := &recorder{}
	b.Register("client", r.deliver, Options{})

	b.Emit(context.Background(), auditEvent("wf-1"))
	b.Unregister("client")
	b.Emit(context.Background(), auditEvent("wf-1"))

	if r.count() != 1 {
		t.Errorf("client got %d events, want 1 (none after unregister)", r.count())
	}
}

func TestBroadcaster_RegisterOverwrites(t *testing.T) {
	b := NewBroadcaster(nil, discardLogger())
	old, replacement := &recorder{}, &recorder{}
	b.Register("client", old.deliver, Options{})
	b.Register("client", replacement.deliver, Options{})

	b.Emit(context.Background(), auditEvent("wf-1"))

	if old.count() != 0 {
		t.Error("overwritten subscription must not receive events")
	}
	if replacement.count() != 1 {
		t.Errorf("replacement got %d events, want 1", replacement.count())
	}
	if m := b.Metrics(); m.ConnectedClients != 1 {
		t.Errorf("connected clients = %d, want 1 after overwrite", m.ConnectedClients)
	}
}

func TestBroadcaster_FailingSubscriberIsIsolated(t *testing.T) {
	b := NewBroadcaster(nil, discardLogger())
	healthy := &recorder{}
	b.Register("broken", func(context.Context, domain.AuditEvent) error {
		return errors.New("socket gone")
	}, Options{})
	b.Register("panicky", func(context.Context, domain.AuditEvent) error {
		panic("subscriber bug")
	}, Options{})
	b.Register("healthy", healthy.deliver, Options{})

	b.Emit(context.Background(), auditEvent("wf-1"))

	if healthy.count() != 1 {
		t.Errorf("healthy client got %d events, want delivery despite peer failures", healthy.count())
	}
	m := b.Metrics()
	if m.Delivered != 1 {
		t.Errorf("delivered = %d, want 1", m.Delivered)
	}
	if m.Failed != 2 {
		t.Errorf("failed = %d, want 2", m.Failed)
	}
}

type captureMirror struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (m *captureMirror) Publish(_ context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func TestBroadcaster_MirrorSeesEveryEvent(t *testing.T) {
	mirror := &captureMirror{}
	b := NewBroadcaster(mirror, discardLogger())

	// No subscribers at all; the mirror still gets a copy.
	b.Emit(context.Background(), auditEvent("wf-1"))
	b.Emit(context.Background(), auditEvent("wf-2"))

	mirror.mu.Lock()
	n := len(mirror.events)
	mirror.mu.Unlock()
	if n != 2 {
		t.Errorf("mirror got %d events, want 2", n)
	}
}

func TestBroadcaster_MirrorFailureDoesNotBlockSubscribers(t *testing.T) {
	mirror := &captureMirror{err: errors.New("bus unavailable")}
	b := NewBroadcaster(mirror, discardLogger())
	r := &recorder{}
	b.Register("client", r.deliver, Options{})

	b.Emit(context.Background(), auditEvent("wf-1"))

	if r.count() != 1 {
		t.Error("subscriber delivery must not depend on the mirror")
	}
}
