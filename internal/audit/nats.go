package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
)

// NATSPublisher mirrors every audit event onto a NATS subject so services
// outside the websocket fan-out (notification workers, archival consumers)
// see the same stream.
type NATSPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSPublisher connects to the NATS server.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("cewce-audit"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	if subjectPrefix == "" {
		subjectPrefix = "audit.events"
	}
	return &NATSPublisher{conn: conn, subjectPrefix: subjectPrefix}, nil
}

// Publish sends the event to <prefix>.<instanceId>.
func (p *NATSPublisher) Publish(_ context.Context, event domain.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	instance := event.InstanceID
	if instance == "" {
		instance = "unscoped"
	}
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, instance)

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}
