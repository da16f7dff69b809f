package chain

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/monitoring/metrics"
)

// FallbackMetrics counts unified client outcomes. Counters are monotonic and
// only reset at process restart; Snapshot gives eventually-consistent reads.
type FallbackMetrics struct {
	sidecarCalls    atomic.Uint64
	sidecarErrors   atomic.Uint64
	nodeFallbacks   atomic.Uint64
	successfulCalls atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the fallback counters.
type MetricsSnapshot struct {
	SidecarCalls    uint64 `json:"sidecarCalls"`
	SidecarErrors   uint64 `json:"sidecarErrors"`
	NodeFallbacks   uint64 `json:"nodeFallbacks"`
	SuccessfulCalls uint64 `json:"successfulCalls"`
}

// Snapshot returns the current counter values.
func (m *FallbackMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		SidecarCalls:    m.sidecarCalls.Load(),
		SidecarErrors:   m.sidecarErrors.Load(),
		NodeFallbacks:   m.nodeFallbacks.Load(),
		SuccessfulCalls: m.successfulCalls.Load(),
	}
}

// UnifiedClient presents one capability surface over both backends. Every
// read goes to the sidecar first; the node is tried only when the sidecar
// failure is transport-level. Authoritative failures (not found, rejected)
// surface as-is because the other backend would give the same answer.
type UnifiedClient struct {
	sidecar Adapter
	node    Adapter
	metrics FallbackMetrics
	log     *slog.Logger
}

// NewUnifiedClient composes the two adapters. Sidecar is always preferred.
func NewUnifiedClient(sidecar, node Adapter, log *slog.Logger) *UnifiedClient {
	return &UnifiedClient{
		sidecar: sidecar,
		node:    node,
		log:     log.With("component", "unified_client"),
	}
}

// Metrics returns a snapshot of the fallback counters.
func (c *UnifiedClient) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// call runs one operation sidecar-first with node fallback. The node is
// invoked at most once, and never when the sidecar answered authoritatively.
func call[T any](
	ctx context.Context,
	c *UnifiedClient,
	op string,
	fn func(ctx context.Context, a Adapter) (T, error),
) (T, Backend, error) {
	c.metrics.sidecarCalls.Add(1)
	metrics.SidecarCalls.WithLabelValues(op).Inc()

	result, err := fn(ctx, c.sidecar)
	if err == nil {
		c.metrics.successfulCalls.Add(1)
		metrics.UnifiedSuccesses.WithLabelValues(op, string(BackendSidecar)).Inc()
		return result, BackendSidecar, nil
	}

	kind := KindOf(err)
	if !IsFallbackWorthy(err) {
		var zero T
		return zero, BackendNone, err
	}

	c.metrics.sidecarErrors.Add(1)
	c.metrics.nodeFallbacks.Add(1)
	metrics.SidecarErrors.WithLabelValues(op, kind.String()).Inc()
	metrics.NodeFallbacks.WithLabelValues(op).Inc()
	c.log.Warn("sidecar failed, falling back to node", "op", op, "kind", kind.String(), "error", err)

	nodeResult, nodeErr := fn(ctx, c.node)
	if nodeErr != nil {
		var zero T
		return zero, BackendNone, &BothFailedError{Op: op, SidecarErr: err, NodeErr: nodeErr}
	}

	c.metrics.successfulCalls.Add(1)
	metrics.UnifiedSuccesses.WithLabelValues(op, string(BackendNode)).Inc()
	return nodeResult, BackendNode, nil
}

// GetDeploy resolves deploy detail, reporting which backend served it.
func (c *UnifiedClient) GetDeploy(ctx context.Context, deployHash string) (*domain.DeployInfo, Backend, error) {
	return call(ctx, c, "get_deploy", func(ctx context.Context, a Adapter) (*domain.DeployInfo, error) {
		return a.GetDeploy(ctx, deployHash)
	})
}

// GetBlock resolves block detail by hash or height.
func (c *UnifiedClient) GetBlock(ctx context.Context, ref domain.BlockRef) (*domain.BlockInfo, Backend, error) {
	return call(ctx, c, "get_block", func(ctx context.Context, a Adapter) (*domain.BlockInfo, error) {
		return a.GetBlock(ctx, ref)
	})
}

// GetStateRootHash resolves the state root at a block (or the tip).
func (c *UnifiedClient) GetStateRootHash(ctx context.Context, blockHash string) (string, Backend, error) {
	return call(ctx, c, "get_state_root_hash", func(ctx context.Context, a Adapter) (string, error) {
		return a.GetStateRootHash(ctx, blockHash)
	})
}

// PutDeploy submits a signed deploy. The write path does not share the read
// path's automatic fallback: the node is only tried when the sidecar provably
// never accepted the request (unreachable). A timeout after the request was
// sent is ambiguous and surfaces as KindAmbiguousSubmit — resubmitting could
// double-submit, so the caller decides.
func (c *UnifiedClient) PutDeploy(ctx context.Context, deploy domain.SignedDeploy) (string, Backend, error) {
	c.metrics.sidecarCalls.Add(1)
	metrics.SidecarCalls.WithLabelValues("put_deploy").Inc()

	hash, err := c.sidecar.PutDeploy(ctx, deploy)
	if err == nil {
		c.metrics.successfulCalls.Add(1)
		metrics.UnifiedSuccesses.WithLabelValues("put_deploy", string(BackendSidecar)).Inc()
		return hash, BackendSidecar, nil
	}

	switch KindOf(err) {
	case KindUnreachable:
		// Connection never established, so the deploy was not accepted.
	case KindTimeout, KindAmbiguousSubmit:
		c.log.Error("deploy submission ambiguous, not resubmitting", "error", err)
		return "", BackendNone, NewError(KindAmbiguousSubmit, BackendSidecar, "put_deploy", err)
	default:
		return "", BackendNone, err
	}

	c.metrics.sidecarErrors.Add(1)
	c.metrics.nodeFallbacks.Add(1)
	metrics.SidecarErrors.WithLabelValues("put_deploy", KindOf(err).String()).Inc()
	metrics.NodeFallbacks.WithLabelValues("put_deploy").Inc()

	hash, nodeErr := c.node.PutDeploy(ctx, deploy)
	if nodeErr != nil {
		return "", BackendNone, &BothFailedError{Op: "put_deploy", SidecarErr: err, NodeErr: nodeErr}
	}

	c.metrics.successfulCalls.Add(1)
	metrics.UnifiedSuccesses.WithLabelValues("put_deploy", string(BackendNode)).Inc()
	return hash, BackendNode, nil
}

// Health reports the unified view: healthy while either backend serves.
// The degraded state (one backend down) is logged so it stays visible.
func (c *UnifiedClient) Health(ctx context.Context) bool {
	sidecarOK := c.sidecar.Health(ctx)
	nodeOK := c.node.Health(ctx)

	if sidecarOK && nodeOK {
		return true
	}
	if sidecarOK || nodeOK {
		c.log.Warn("chain access degraded", "sidecar", sidecarOK, "node", nodeOK)
		return true
	}
	c.log.Error("both chain backends down")
	return false
}

// HealthDetail reports per-backend health for the detailed endpoint.
func (c *UnifiedClient) HealthDetail(ctx context.Context) map[string]bool {
	return map[string]bool{
		string(BackendSidecar): c.sidecar.Health(ctx),
		string(BackendNode):    c.node.Health(ctx),
	}
}
