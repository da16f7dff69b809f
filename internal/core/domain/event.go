package domain

// EventType identifies the kind of fact observed on the event stream.
type EventType string

const (
	EventTypeDeployProcessed      EventType = "DeployProcessed"
	EventTypeTransactionProcessed EventType = "TransactionProcessed"
	EventTypeBlockAdded           EventType = "BlockAdded"
	EventTypeStep                 EventType = "Step"
)

// KnownEventTypes lists every stream event type the pipeline forwards.
// Anything else is logged as unrecognized and dropped.
var KnownEventTypes = map[EventType]struct{}{
	EventTypeDeployProcessed:      {},
	EventTypeTransactionProcessed: {},
	EventTypeBlockAdded:           {},
	EventTypeStep:                 {},
}

// ChainEvent is one blockchain-observed fact. It is immutable after creation:
// the stream produces it, ingestion consumes it at most once per dedup window.
type ChainEvent struct {
	Type       EventType
	DeployHash string // empty for non-deploy-scoped events
	BlockHash  string // empty when the event carries no block reference
	Raw        map[string]any
}

// DeployScoped reports whether the event is identified by a deploy hash.
func (e ChainEvent) DeployScoped() bool {
	return e.DeployHash != ""
}
