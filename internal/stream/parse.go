package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
)

// ErrUnrecognizedEvent marks a well-formed message whose event type the
// pipeline does not forward. Distinguished from malformed payloads in logs
// and metrics.
var ErrUnrecognizedEvent = errors.New("unrecognized event type")

// errHandshake marks ignorable protocol messages like the ApiVersion
// announcement the node sends on connect.
var errHandshake = errors.New("handshake message")

// ParseEvent decodes one raw stream payload into a ChainEvent. The wire form
// is a single-key object: {"DeployProcessed": {...}}.
func ParseEvent(data []byte) (domain.ChainEvent, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return domain.ChainEvent{}, fmt.Errorf("malformed payload: %w", err)
	}
	if len(envelope) != 1 {
		return domain.ChainEvent{}, fmt.Errorf("malformed payload: expected single-key envelope, got %d keys", len(envelope))
	}

	for key, raw := range envelope {
		if key == "ApiVersion" {
			return domain.ChainEvent{}, errHandshake
		}

		eventType := domain.EventType(key)
		if _, ok := domain.KnownEventTypes[eventType]; !ok {
			return domain.ChainEvent{}, fmt.Errorf("%w: %s", ErrUnrecognizedEvent, key)
		}

		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return domain.ChainEvent{}, fmt.Errorf("malformed %s payload: %w", key, err)
		}

		return domain.ChainEvent{
			Type:       eventType,
			DeployHash: stringField(payload, "deploy_hash"),
			BlockHash:  stringField(payload, "block_hash"),
			Raw:        payload,
		}, nil
	}

	return domain.ChainEvent{}, fmt.Errorf("malformed payload: empty envelope")
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
