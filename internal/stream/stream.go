// Package stream manages the long-lived server-push connection to the chain
// event source. The connection lifecycle is an explicit state machine
// (CONNECTING → OPEN → CLOSED) driven by an injectable transport, so the
// reconnect contract is testable without a real network.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/monitoring/metrics"
)

// Status is the stream connection state.
type Status int32

const (
	StatusConnecting Status = iota
	StatusOpen
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusOpen:
		return "OPEN"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Connection is one established stream session. Recv blocks until the next
// raw message or a transport error.
type Connection interface {
	Recv() ([]byte, error)
	Close() error
}

// Connector establishes stream sessions. Injectable so tests can drive the
// state machine with scripted connections.
type Connector interface {
	Connect(ctx context.Context) (Connection, error)
}

// Handler consumes parsed chain events in stream order.
type Handler func(ctx context.Context, event domain.ChainEvent)

// Stream owns the reconnect loop. A failed session increments the attempt
// counter and waits min(base*2^attempt, max)+jitter before redialing; a
// successful handshake resets the counter, so a past outage never penalizes
// future reconnects.
type Stream struct {
	backoff   BackoffConfig
	connector Connector
	handler   Handler
	log       *slog.Logger

	status  atomic.Int32
	attempt atomic.Int32

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a stream over the given transport.
func New(connector Connector, handler Handler, backoff BackoffConfig, log *slog.Logger) *Stream {
	return &Stream{
		backoff:   backoff,
		connector: connector,
		handler:   handler,
		log:       log.With("component", "event_stream"),
		closed:    make(chan struct{}),
	}
}

// Status returns the current connection state.
func (s *Stream) Status() Status {
	return Status(s.status.Load())
}

// Attempt returns the current reconnect attempt counter.
func (s *Stream) Attempt() int {
	return int(s.attempt.Load())
}

// Close transitions to CLOSED and cancels any pending reconnect timer. Safe
// to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// Run drives the connect/read/reconnect loop until the context is cancelled
// or Close is called. Blocking; run it on its own goroutine.
func (s *Stream) Run(ctx context.Context) error {
	defer s.status.Store(int32(StatusClosed))

	for {
		if s.done(ctx) {
			return nil
		}

		s.status.Store(int32(StatusConnecting))
		conn, err := s.connector.Connect(ctx)
		if err != nil {
			if s.done(ctx) {
				return nil
			}
			if !s.waitBackoff(ctx, err) {
				return nil
			}
			continue
		}

		s.status.Store(int32(StatusOpen))
		s.attempt.Store(0)
		s.log.Info("event stream connected")

		err = s.readLoop(ctx, conn)
		_ = conn.Close()
		if s.done(ctx) {
			return nil
		}
		if !s.waitBackoff(ctx, err) {
			return nil
		}
	}
}

// readLoop consumes one session until it errors out.
func (s *Stream) readLoop(ctx context.Context, conn Connection) error {
	for {
		if s.done(ctx) {
			return nil
		}

		msg, err := conn.Recv()
		if err != nil {
			return err
		}
		s.dispatch(ctx, msg)
	}
}

// dispatch parses and forwards one raw message. Malformed or unrecognized
// payloads are logged and dropped; they never count as reconnect-worthy.
func (s *Stream) dispatch(ctx context.Context, msg []byte) {
	event, err := ParseEvent(msg)
	switch {
	case err == nil:
		metrics.StreamEvents.WithLabelValues("parsed").Inc()
		s.handler(ctx, event)
	case errors.Is(err, errHandshake):
		// ApiVersion announcement on connect, nothing to forward.
	case errors.Is(err, ErrUnrecognizedEvent):
		metrics.StreamEvents.WithLabelValues("unrecognized").Inc()
		s.log.Debug("dropping unrecognized stream event", "error", err)
	default:
		metrics.StreamEvents.WithLabelValues("malformed").Inc()
		s.log.Warn("dropping malformed stream payload", "error", err)
	}
}

// waitBackoff sleeps the computed delay for the next reconnect. Returns
// false when the stream was closed while waiting.
func (s *Stream) waitBackoff(ctx context.Context, cause error) bool {
	attempt := int(s.attempt.Add(1)) - 1
	delay := s.backoff.Delay(attempt)
	metrics.StreamReconnects.Inc()
	s.log.Warn("event stream disconnected, reconnecting",
		"attempt", attempt+1,
		"delay", delay.Round(time.Millisecond),
		"error", cause,
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) done(ctx context.Context) bool {
	select {
	case <-s.closed:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
