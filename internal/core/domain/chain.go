package domain

import "encoding/json"

// DeployInfo is the resolved detail for a deploy, as reported by either
// backend. ContractHash is empty until execution touched a stored contract.
type DeployInfo struct {
	Hash         string
	BlockHash    string
	ContractHash string
	Success      bool
	ErrorMessage string
}

// BlockInfo is the resolved detail for a block.
type BlockInfo struct {
	Hash          string
	Height        uint64
	StateRootHash string
	EraID         uint64
	Timestamp     string
}

// BlockRef identifies a block by hash or by height.
type BlockRef struct {
	Hash     string
	Height   uint64
	ByHeight bool
}

// BlockByHash returns a hash-based block reference.
func BlockByHash(hash string) BlockRef {
	return BlockRef{Hash: hash}
}

// BlockByHeight returns a height-based block reference.
func BlockByHeight(height uint64) BlockRef {
	return BlockRef{Height: height, ByHeight: true}
}

// SignedDeploy is an already-signed deploy ready for submission. The pipeline
// never inspects or re-signs it, so it stays opaque JSON.
type SignedDeploy json.RawMessage
