// Package chain defines the adapter capability both Casper read paths
// implement, plus the unified client that composes them.
//
// This package contains:
//   - Adapter interface: the capability contract (deploys, blocks, state root,
//     submission, health)
//   - Error: tagged error type distinguishing fallback-worthy transport
//     failures from authoritative chain answers
//   - UnifiedClient: sidecar-first ordered fallback with metrics
package chain

import (
	"context"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
)

// Adapter is the capability contract any chain backend must satisfy.
// Construction is pure configuration; no I/O happens before the first call.
type Adapter interface {
	// Name returns the backend identifier (e.g. "sidecar", "node")
	Name() string

	// GetDeploy fetches resolved detail for a deploy by hash
	GetDeploy(ctx context.Context, deployHash string) (*domain.DeployInfo, error)

	// GetBlock fetches a block by hash or height
	GetBlock(ctx context.Context, ref domain.BlockRef) (*domain.BlockInfo, error)

	// GetStateRootHash returns the state root at a block, or at the tip when
	// blockHash is empty
	GetStateRootHash(ctx context.Context, blockHash string) (string, error)

	// PutDeploy submits a signed deploy and returns its hash
	PutDeploy(ctx context.Context, deploy domain.SignedDeploy) (string, error)

	// Health reports whether the backend is currently serving. It never
	// returns an error; any failure is false.
	Health(ctx context.Context) bool
}

// Backend identifies which read path served a call.
type Backend string

const (
	BackendSidecar Backend = "sidecar"
	BackendNode    Backend = "node"
	BackendNone    Backend = ""
)
