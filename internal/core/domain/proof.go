package domain

import "time"

// CryptographicProof anchors a workflow transition to the chain detail that
// confirmed it. Unresolved fields are nil, never omitted, so consumers can
// tell "unknown" from "absent". Created once per finalized transition and
// never mutated.
type CryptographicProof struct {
	EventHash             string    `json:"eventHash"`
	DeployHash            *string   `json:"deployHash"`
	BlockHash             *string   `json:"blockHash"`
	BlockHeight           *uint64   `json:"blockHeight"`
	StateRootHash         *string   `json:"stateRootHash"`
	ContractHash          *string   `json:"contractHash"`
	SidecarVerified       bool      `json:"sidecarVerified"`
	VerificationTimestamp time.Time `json:"verificationTimestamp"`
}

// AuditEvent is what subscribers receive: the transition plus its proof.
type AuditEvent struct {
	Type       string              `json:"type"`
	InstanceID string              `json:"instanceId"`
	Transition Transition          `json:"transition"`
	Proof      *CryptographicProof `json:"proof"`
	EmittedAt  time.Time           `json:"emittedAt"`
}
