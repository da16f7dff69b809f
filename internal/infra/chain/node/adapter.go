// Package node implements the chain adapter capability over the blockchain
// node's native JSON-RPC. It is the authoritative fallback path: always
// available, but with a slower and poorer query surface than the sidecar.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/infra/chain"
)

// Casper-specific RPC error code for a missing deploy/block.
const codeNoSuchResource = -32001

// Config holds node adapter settings.
type Config struct {
	RPCURL    string        `yaml:"rpc_url"`
	ChainName string        `yaml:"chain_name"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Adapter issues JSON-RPC 2.0 calls against the node endpoint.
type Adapter struct {
	endpoint   string
	chainName  string
	httpClient *http.Client
}

// New creates a node adapter from configuration.
func New(cfg Config) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		endpoint:   cfg.RPCURL,
		chainName:  cfg.ChainName,
		httpClient: chain.NewHTTPClient(timeout),
	}
}

// Name returns the backend identifier.
func (a *Adapter) Name() string {
	return string(chain.BackendNode)
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call makes a single JSON-RPC call and returns the raw result.
func (a *Adapter) call(ctx context.Context, op, method string, params any) (json.RawMessage, error) {
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, chain.NewError(chain.KindInvalidResponse, chain.BackendNode, op,
			fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, chain.NewError(chain.KindInvalidResponse, chain.BackendNode, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, chain.NewError(chain.TransportKind(err), chain.BackendNode, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, chain.NewError(chain.TransportKind(err), chain.BackendNode, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, chain.NewError(chain.KindUnreachable, chain.BackendNode, op,
			fmt.Errorf("http %d: %s", resp.StatusCode, string(body)))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, chain.NewError(chain.KindInvalidResponse, chain.BackendNode, op,
			fmt.Errorf("parse response: %w", err))
	}

	if rpcResp.Error != nil {
		kind := chain.KindInvalidResponse
		if rpcResp.Error.Code == codeNoSuchResource {
			kind = chain.KindNotFound
		}
		return nil, chain.NewError(kind, chain.BackendNode, op,
			fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}

	return rpcResp.Result, nil
}

// GetDeploy resolves deploy detail via info_get_deploy.
func (a *Adapter) GetDeploy(ctx context.Context, deployHash string) (*domain.DeployInfo, error) {
	const op = "get_deploy"

	raw, err := a.call(ctx, op, "info_get_deploy", map[string]any{"deploy_hash": deployHash})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Deploy struct {
			Hash string `json:"hash"`
		} `json:"deploy"`
		ExecutionResults []struct {
			BlockHash string `json:"block_hash"`
			Result    struct {
				Success *struct {
					Effect struct {
						Transforms []struct {
							Key string `json:"key"`
						} `json:"transforms"`
					} `json:"effect"`
				} `json:"Success"`
				Failure *struct {
					ErrorMessage string `json:"error_message"`
				} `json:"Failure"`
			} `json:"result"`
		} `json:"execution_results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, chain.NewError(chain.KindInvalidResponse, chain.BackendNode, op,
			fmt.Errorf("parse deploy: %w", err))
	}

	info := &domain.DeployInfo{Hash: resp.Deploy.Hash}
	if info.Hash == "" {
		info.Hash = deployHash
	}
	if len(resp.ExecutionResults) > 0 {
		res := resp.ExecutionResults[0]
		info.BlockHash = res.BlockHash
		switch {
		case res.Result.Success != nil:
			info.Success = true
			info.ContractHash = firstContractKey(res.Result.Success.Effect.Transforms)
		case res.Result.Failure != nil:
			info.ErrorMessage = res.Result.Failure.ErrorMessage
		}
	}
	return info, nil
}

// firstContractKey scans execution transforms for a stored-contract key.
func firstContractKey(transforms []struct {
	Key string `json:"key"`
}) string {
	for _, tr := range transforms {
		if len(tr.Key) > 5 && tr.Key[:5] == "hash-" {
			return tr.Key
		}
	}
	return ""
}

// GetBlock resolves a block via chain_get_block.
func (a *Adapter) GetBlock(ctx context.Context, ref domain.BlockRef) (*domain.BlockInfo, error) {
	const op = "get_block"

	var ident map[string]any
	if ref.ByHeight {
		ident = map[string]any{"Height": ref.Height}
	} else {
		ident = map[string]any{"Hash": ref.Hash}
	}

	raw, err := a.call(ctx, op, "chain_get_block", map[string]any{"block_identifier": ident})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Block struct {
			Hash   string `json:"hash"`
			Header struct {
				Height        uint64 `json:"height"`
				StateRootHash string `json:"state_root_hash"`
				EraID         uint64 `json:"era_id"`
				Timestamp     string `json:"timestamp"`
			} `json:"header"`
		} `json:"block"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, chain.NewError(chain.KindInvalidResponse, chain.BackendNode, op,
			fmt.Errorf("parse block: %w", err))
	}
	if resp.Block.Hash == "" {
		return nil, chain.NewError(chain.KindNotFound, chain.BackendNode, op,
			fmt.Errorf("empty block in response"))
	}

	return &domain.BlockInfo{
		Hash:          resp.Block.Hash,
		Height:        resp.Block.Header.Height,
		StateRootHash: resp.Block.Header.StateRootHash,
		EraID:         resp.Block.Header.EraID,
		Timestamp:     resp.Block.Header.Timestamp,
	}, nil
}

// GetStateRootHash resolves the state root via chain_get_state_root_hash.
func (a *Adapter) GetStateRootHash(ctx context.Context, blockHash string) (string, error) {
	const op = "get_state_root_hash"

	params := map[string]any{}
	if blockHash != "" {
		params["block_identifier"] = map[string]any{"Hash": blockHash}
	}

	raw, err := a.call(ctx, op, "chain_get_state_root_hash", params)
	if err != nil {
		return "", err
	}

	var resp struct {
		StateRootHash string `json:"state_root_hash"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.StateRootHash == "" {
		return "", chain.NewError(chain.KindInvalidResponse, chain.BackendNode, op,
			fmt.Errorf("parse state root: %s", string(raw)))
	}
	return resp.StateRootHash, nil
}

// PutDeploy submits a signed deploy via account_put_deploy. An RPC-level
// error here means the chain refused the deploy, which is never retried.
func (a *Adapter) PutDeploy(ctx context.Context, deploy domain.SignedDeploy) (string, error) {
	const op = "put_deploy"

	raw, err := a.call(ctx, op, "account_put_deploy", map[string]any{"deploy": json.RawMessage(deploy)})
	if err != nil {
		// An RPC-level error on submission is the chain refusing the deploy.
		if chain.KindOf(err) == chain.KindInvalidResponse {
			return "", chain.NewError(chain.KindRejected, chain.BackendNode, op, err)
		}
		return "", err
	}

	var resp struct {
		DeployHash string `json:"deploy_hash"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.DeployHash == "" {
		return "", chain.NewError(chain.KindInvalidResponse, chain.BackendNode, op,
			fmt.Errorf("parse deploy hash: %s", string(raw)))
	}
	return resp.DeployHash, nil
}

// Health probes info_get_status. Any failure is false, never an error.
func (a *Adapter) Health(ctx context.Context) bool {
	_, err := a.call(ctx, "health", "info_get_status", map[string]any{})
	return err == nil
}
