// Package proof derives the deterministic cryptographic fingerprint for a
// workflow transition and assembles the proof record anchoring it to the
// chain.
package proof

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/infra/chain"
	"github.com/Shubhojit-17/cewce/internal/monitoring/metrics"
)

// Resolver is the slice of the unified client the generator needs to enrich
// a proof with chain detail.
type Resolver interface {
	GetDeploy(ctx context.Context, deployHash string) (*domain.DeployInfo, chain.Backend, error)
	GetBlock(ctx context.Context, ref domain.BlockRef) (*domain.BlockInfo, chain.Backend, error)
	GetStateRootHash(ctx context.Context, blockHash string) (string, chain.Backend, error)
}

// Generator builds CryptographicProof records.
type Generator struct {
	resolver     Resolver
	contractHash string
	now          func() time.Time
	log          *slog.Logger
}

// NewGenerator creates a proof generator. contractHash scopes proofs to the
// workflow contract when execution detail does not name one.
func NewGenerator(resolver Resolver, contractHash string, log *slog.Logger) *Generator {
	return &Generator{
		resolver:     resolver,
		contractHash: contractHash,
		now:          time.Now,
		log:          log.With("component", "proof"),
	}
}

// Fingerprint hashes the transition's semantic fields. The serialization is
// an explicit ordered join, so identical logical input always yields an
// identical hash regardless of incidental key ordering anywhere upstream.
func Fingerprint(t domain.Transition) string {
	canonical := strings.Join([]string{
		"v1",
		t.TransitionID,
		t.InstanceID,
		t.FromState,
		t.ToState,
		t.Actor,
		t.Timestamp,
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Generate assembles the proof for a finalized transition, enriching it with
// whatever chain detail the unified client can resolve. Unresolved fields
// stay nil; resolution failure degrades the proof, it never blocks it.
// SidecarVerified is true only when every piece of confirming detail came
// through the sidecar path.
func (g *Generator) Generate(ctx context.Context, t domain.Transition, event domain.ChainEvent) *domain.CryptographicProof {
	p := &domain.CryptographicProof{
		EventHash:             Fingerprint(t),
		VerificationTimestamp: g.now(),
	}

	sidecarVerified := false
	if event.DeployScoped() {
		sidecarVerified = g.resolve(ctx, event, p)
	}
	p.SidecarVerified = sidecarVerified
	if g.contractHash != "" && p.ContractHash == nil {
		contract := g.contractHash
		p.ContractHash = &contract
	}

	metrics.ProofsGenerated.WithLabelValues(boolLabel(p.SidecarVerified)).Inc()
	return p
}

// resolve fills the chain anchor fields. Returns true when everything that
// resolved did so via the sidecar and at least the deploy was confirmed.
func (g *Generator) resolve(ctx context.Context, event domain.ChainEvent, p *domain.CryptographicProof) bool {
	deployHash := event.DeployHash
	p.DeployHash = &deployHash

	info, deployVia, err := g.resolver.GetDeploy(ctx, deployHash)
	if err != nil {
		g.log.Warn("proof resolution incomplete: deploy detail unavailable",
			"deploy_hash", deployHash, "error", err)
		if event.BlockHash != "" {
			blockHash := event.BlockHash
			p.BlockHash = &blockHash
		}
		return false
	}

	blockHash := info.BlockHash
	if blockHash == "" {
		blockHash = event.BlockHash
	}
	if blockHash != "" {
		p.BlockHash = &blockHash
	}
	if info.ContractHash != "" {
		contract := info.ContractHash
		p.ContractHash = &contract
	}

	allSidecar := deployVia == chain.BackendSidecar
	if blockHash == "" {
		// Deploy not yet in a block; nothing further to anchor.
		return allSidecar
	}

	// Block detail and state root are independent reads; resolve them
	// concurrently. Fields may settle out of order, the proof is only
	// finalized once both have settled or failed.
	var (
		block     *domain.BlockInfo
		blockVia  chain.Backend
		stateRoot string
		rootVia   chain.Backend
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		block, blockVia, err = g.resolver.GetBlock(egCtx, domain.BlockByHash(blockHash))
		if err != nil {
			g.log.Warn("proof resolution incomplete: block detail unavailable",
				"block_hash", blockHash, "error", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		stateRoot, rootVia, err = g.resolver.GetStateRootHash(egCtx, blockHash)
		if err != nil {
			g.log.Warn("proof resolution incomplete: state root unavailable",
				"block_hash", blockHash, "error", err)
		}
		return nil
	})
	_ = eg.Wait()

	if block != nil {
		height := block.Height
		p.BlockHeight = &height
		if stateRoot == "" && block.StateRootHash != "" {
			stateRoot = block.StateRootHash
			rootVia = blockVia
		}
		allSidecar = allSidecar && blockVia == chain.BackendSidecar
	} else {
		allSidecar = false
	}

	if stateRoot != "" {
		p.StateRootHash = &stateRoot
		allSidecar = allSidecar && rootVia == chain.BackendSidecar
	} else {
		allSidecar = false
	}

	return allSidecar
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
