package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
)

// ProofRepo implements the audit proof store using PostgreSQL.
type ProofRepo struct {
	db *DB
}

// NewProofRepo creates a new PostgreSQL proof repository.
func NewProofRepo(db *DB) *ProofRepo {
	return &ProofRepo{db: db}
}

// StoredProof is a persisted proof row joined with its workflow instance.
type StoredProof struct {
	InstanceID string                    `json:"instanceId"`
	Proof      domain.CryptographicProof `json:"proof"`
	CreatedAt  time.Time                 `json:"createdAt"`
}

// SaveProof inserts one proof. Proofs are immutable; a replayed event hash
// for the same instance is ignored rather than overwritten.
func (r *ProofRepo) SaveProof(ctx context.Context, instanceID string, p *domain.CryptographicProof) error {
	const q = `
		INSERT INTO proofs (
			instance_id, event_hash, deploy_hash, block_hash, block_height,
			state_root_hash, contract_hash, sidecar_verified, verification_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (instance_id, event_hash) DO NOTHING`

	_, err := r.db.ExecContext(ctx, q,
		instanceID,
		p.EventHash,
		p.DeployHash,
		p.BlockHash,
		nullableUint(p.BlockHeight),
		p.StateRootHash,
		p.ContractHash,
		p.SidecarVerified,
		p.VerificationTimestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save proof: %w", err)
	}
	return nil
}

// ListByInstance returns the most recent proofs for a workflow instance.
func (r *ProofRepo) ListByInstance(ctx context.Context, instanceID string, limit int) ([]StoredProof, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
		SELECT instance_id, event_hash, deploy_hash, block_hash, block_height,
		       state_root_hash, contract_hash, sidecar_verified,
		       verification_timestamp, created_at
		FROM proofs
		WHERE instance_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list proofs: %w", err)
	}
	defer rows.Close()

	var out []StoredProof
	for rows.Next() {
		var (
			sp     StoredProof
			height *int64
		)
		if err := rows.Scan(
			&sp.InstanceID,
			&sp.Proof.EventHash,
			&sp.Proof.DeployHash,
			&sp.Proof.BlockHash,
			&height,
			&sp.Proof.StateRootHash,
			&sp.Proof.ContractHash,
			&sp.Proof.SidecarVerified,
			&sp.Proof.VerificationTimestamp,
			&sp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan proof: %w", err)
		}
		if height != nil {
			h := uint64(*height)
			sp.Proof.BlockHeight = &h
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate proofs: %w", err)
	}
	return out, nil
}

func nullableUint(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	i := int64(*v)
	return &i
}
