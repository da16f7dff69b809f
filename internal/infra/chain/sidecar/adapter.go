// Package sidecar implements the chain adapter capability over the REST API
// of the companion indexing service. It is the preferred read path: faster
// and with a richer query surface than the raw node.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/infra/chain"
)

// Config holds sidecar adapter settings. Construction is pure configuration;
// no I/O happens until the first call.
type Config struct {
	RestURL   string        `yaml:"rest_url"`
	ChainName string        `yaml:"chain_name"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Adapter issues REST calls against the sidecar base URL.
type Adapter struct {
	baseURL    string
	chainName  string
	httpClient *http.Client
}

// New creates a sidecar adapter from configuration.
func New(cfg Config) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		baseURL:    strings.TrimRight(cfg.RestURL, "/"),
		chainName:  cfg.ChainName,
		httpClient: chain.NewHTTPClient(timeout),
	}
}

// Name returns the backend identifier.
func (a *Adapter) Name() string {
	return string(chain.BackendSidecar)
}

// deployResponse is the sidecar's deploy detail shape.
type deployResponse struct {
	DeployHash      string `json:"deploy_hash"`
	BlockHash       string `json:"block_hash"`
	ContractHash    string `json:"contract_hash"`
	ExecutionResult struct {
		Success      bool   `json:"success"`
		ErrorMessage string `json:"error_message"`
	} `json:"execution_result"`
}

// GetDeploy fetches deploy detail via GET /deploys/{hash}.
func (a *Adapter) GetDeploy(ctx context.Context, deployHash string) (*domain.DeployInfo, error) {
	var resp deployResponse
	if err := a.get(ctx, "get_deploy", "/deploys/"+url.PathEscape(deployHash), &resp); err != nil {
		return nil, err
	}

	return &domain.DeployInfo{
		Hash:         resp.DeployHash,
		BlockHash:    resp.BlockHash,
		ContractHash: resp.ContractHash,
		Success:      resp.ExecutionResult.Success,
		ErrorMessage: resp.ExecutionResult.ErrorMessage,
	}, nil
}

// blockResponse is the sidecar's block detail shape.
type blockResponse struct {
	Hash          string `json:"hash"`
	Height        uint64 `json:"height"`
	StateRootHash string `json:"state_root_hash"`
	EraID         uint64 `json:"era_id"`
	Timestamp     string `json:"timestamp"`
}

// GetBlock fetches a block via GET /blocks/{hash} or GET /blocks/height/{n}.
func (a *Adapter) GetBlock(ctx context.Context, ref domain.BlockRef) (*domain.BlockInfo, error) {
	path := "/blocks/" + url.PathEscape(ref.Hash)
	if ref.ByHeight {
		path = "/blocks/height/" + strconv.FormatUint(ref.Height, 10)
	}

	var resp blockResponse
	if err := a.get(ctx, "get_block", path, &resp); err != nil {
		return nil, err
	}

	return &domain.BlockInfo{
		Hash:          resp.Hash,
		Height:        resp.Height,
		StateRootHash: resp.StateRootHash,
		EraID:         resp.EraID,
		Timestamp:     resp.Timestamp,
	}, nil
}

// GetStateRootHash fetches the state root via GET /state-root-hash, scoped to
// a block when blockHash is set.
func (a *Adapter) GetStateRootHash(ctx context.Context, blockHash string) (string, error) {
	path := "/state-root-hash"
	if blockHash != "" {
		path += "?block_hash=" + url.QueryEscape(blockHash)
	}

	var resp struct {
		StateRootHash string `json:"state_root_hash"`
	}
	if err := a.get(ctx, "get_state_root_hash", path, &resp); err != nil {
		return "", err
	}
	if resp.StateRootHash == "" {
		return "", chain.NewError(chain.KindInvalidResponse, chain.BackendSidecar, "get_state_root_hash",
			fmt.Errorf("empty state root in response"))
	}
	return resp.StateRootHash, nil
}

// PutDeploy submits a signed deploy via POST /deploys.
func (a *Adapter) PutDeploy(ctx context.Context, deploy domain.SignedDeploy) (string, error) {
	const op = "put_deploy"

	body, err := json.Marshal(map[string]any{
		"chain_name": a.chainName,
		"deploy":     json.RawMessage(deploy),
	})
	if err != nil {
		return "", chain.NewError(chain.KindInvalidResponse, chain.BackendSidecar, op,
			fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/deploys", bytes.NewReader(body))
	if err != nil {
		return "", chain.NewError(chain.KindInvalidResponse, chain.BackendSidecar, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", chain.NewError(chain.TransportKind(err), chain.BackendSidecar, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", chain.NewError(chain.TransportKind(err), chain.BackendSidecar, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out struct {
			DeployHash string `json:"deploy_hash"`
		}
		if err := json.Unmarshal(raw, &out); err != nil || out.DeployHash == "" {
			return "", chain.NewError(chain.KindInvalidResponse, chain.BackendSidecar, op,
				fmt.Errorf("parse response: %s", string(raw)))
		}
		return out.DeployHash, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", chain.NewError(chain.KindRejected, chain.BackendSidecar, op,
			fmt.Errorf("http %d: %s", resp.StatusCode, string(raw)))
	default:
		return "", chain.NewError(chain.KindUnreachable, chain.BackendSidecar, op,
			fmt.Errorf("http %d: %s", resp.StatusCode, string(raw)))
	}
}

// Health probes GET /health. Any failure is false, never an error.
func (a *Adapter) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// get issues one GET call and decodes the JSON body into out.
func (a *Adapter) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return chain.NewError(chain.KindInvalidResponse, chain.BackendSidecar, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return chain.NewError(chain.TransportKind(err), chain.BackendSidecar, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return chain.NewError(chain.TransportKind(err), chain.BackendSidecar, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusNotFound:
		return chain.NewError(chain.KindNotFound, chain.BackendSidecar, op,
			fmt.Errorf("http 404: %s", string(body)))
	default:
		return chain.NewError(chain.KindUnreachable, chain.BackendSidecar, op,
			fmt.Errorf("http %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return chain.NewError(chain.KindInvalidResponse, chain.BackendSidecar, op,
			fmt.Errorf("parse response: %w", err))
	}
	return nil
}
