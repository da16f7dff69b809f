package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/proof"
)

// ProofStore persists emitted proofs for later audit queries.
type ProofStore interface {
	SaveProof(ctx context.Context, instanceID string, p *domain.CryptographicProof) error
}

// Processor is the downstream sink of the ingestion pipeline: it extracts
// the workflow transition from a first-seen event, generates its proof,
// persists it, and broadcasts the audit event.
type Processor struct {
	generator   *proof.Generator
	broadcaster *Broadcaster
	store       ProofStore // optional
	log         *slog.Logger
}

// NewProcessor wires the proof generator and broadcaster. store may be nil.
func NewProcessor(generator *proof.Generator, broadcaster *Broadcaster, store ProofStore, log *slog.Logger) *Processor {
	return &Processor{
		generator:   generator,
		broadcaster: broadcaster,
		store:       store,
		log:         log.With("component", "audit_processor"),
	}
}

// HandleEvent processes one first-seen chain event.
func (p *Processor) HandleEvent(ctx context.Context, event domain.ChainEvent) error {
	transition, ok := domain.TransitionFromEvent(event)
	if !ok {
		// Blocks, era steps and unrelated deploys are deduped and counted
		// but carry no workflow transition to prove.
		p.log.Debug("event carries no workflow transition", "type", event.Type, "deploy_hash", event.DeployHash)
		return nil
	}

	pr := p.generator.Generate(ctx, transition, event)

	if p.store != nil {
		// Best effort: a store outage must not block the broadcast path.
		if err := p.store.SaveProof(ctx, transition.InstanceID, pr); err != nil {
			p.log.Error("failed to persist proof", "instance_id", transition.InstanceID, "error", err)
		}
	}

	p.broadcaster.Emit(ctx, domain.AuditEvent{
		Type:       "workflow.transition",
		InstanceID: transition.InstanceID,
		Transition: transition,
		Proof:      pr,
		EmittedAt:  time.Now().UTC(),
	})
	return nil
}
