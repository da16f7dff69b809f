package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Shubhojit-17/cewce/internal/audit"
	"github.com/Shubhojit-17/cewce/internal/core/domain"
	"github.com/Shubhojit-17/cewce/internal/infra/chain"
	"github.com/Shubhojit-17/cewce/internal/infra/chain/node"
	"github.com/Shubhojit-17/cewce/internal/infra/chain/sidecar"
	"github.com/Shubhojit-17/cewce/internal/ingest"
	"github.com/Shubhojit-17/cewce/internal/proof"
	"github.com/Shubhojit-17/cewce/internal/stream"
)

// newSidecarServer serves the read surface the proof generator resolves
// against.
func newSidecarServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/deploys/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"deploy_hash":   "deploy-hash-003",
			"block_hash":    "block-hash-010",
			"contract_hash": "hash-workflow-contract",
			"execution_result": map[string]any{
				"success": true,
			},
		})
	})
	mux.HandleFunc("/blocks/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"hash":            "block-hash-010",
			"height":          120045,
			"state_root_hash": "state-root-777",
			"era_id":          412,
		})
	})
	mux.HandleFunc("/state-root-hash", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"state_root_hash": "state-root-777"})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newEventServer serves one SSE session: the ApiVersion handshake, the given
// frames, then holds the connection open until the client goes away.
func newEventServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprintf(w, "data: {\"ApiVersion\":\"1.5.6\"}\n\n")
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
		flusher.Flush()

		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

type auditRecorder struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	seen   chan struct{}
}

func newAuditRecorder() *auditRecorder {
	return &auditRecorder{seen: make(chan struct{}, 16)}
}

func (r *auditRecorder) deliver(_ context.Context, event domain.AuditEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.seen <- struct{}{}
	return nil
}

func (r *auditRecorder) snapshot() []domain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditEvent(nil), r.events...)
}

func transitionFrame(transitionID string) string {
	return fmt.Sprintf(`{"DeployProcessed":{"deploy_hash":"deploy-hash-003","block_hash":"block-hash-010","transition":{"transition_id":%q,"instance_id":"wf-42","from_state":"pending_approval","to_state":"approved","actor":"account-hash-abc","timestamp":"2026-08-28T10:15:00Z"}}}`, transitionID)
}

// TestPipeline_EndToEnd drives a transition event from the SSE wire through
// dedup, proof generation against the sidecar, and broadcast delivery.
func TestPipeline_EndToEnd(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sidecarSrv := newSidecarServer(t)
	// Duplicate frame on the wire: the subscriber must see the transition once.
	eventSrv := newEventServer(t, []string{
		transitionFrame("tr-001"),
		transitionFrame("tr-001"),
		`{"BlockAdded":{"block_hash":"block-hash-010"}}`,
	})

	sidecarAdapter := sidecar.New(sidecar.Config{RestURL: sidecarSrv.URL, ChainName: "casper-test", Timeout: 5 * time.Second})
	// The node is never reached on the happy path; an unreachable URL proves it.
	nodeAdapter := node.New(node.Config{RPCURL: "http://127.0.0.1:1/rpc", ChainName: "casper-test", Timeout: time.Second})
	client := chain.NewUnifiedClient(sidecarAdapter, nodeAdapter, log)

	recorder := newAuditRecorder()
	broadcaster := audit.NewBroadcaster(nil, log)
	broadcaster.Register("e2e-client", recorder.deliver, audit.Options{})

	generator := proof.NewGenerator(client, "", log)
	processor := audit.NewProcessor(generator, broadcaster, nil, log)
	pipeline := ingest.New(ingest.NewMemoryCache(time.Hour), processor, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := stream.New(
		stream.NewSSEConnector(eventSrv.URL),
		func(ctx context.Context, event domain.ChainEvent) {
			if _, err := pipeline.Process(ctx, event); err != nil {
				t.Errorf("pipeline: %v", err)
			}
		},
		stream.BackoffConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond},
		log,
	)
	go s.Run(ctx)
	defer s.Close()

	select {
	case <-recorder.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("no audit event arrived")
	}

	// Give the duplicate frame a moment to (not) produce a second delivery.
	time.Sleep(200 * time.Millisecond)

	events := recorder.snapshot()
	if len(events) != 1 {
		t.Fatalf("subscriber got %d audit events, want exactly 1 (duplicate absorbed)", len(events))
	}

	got := events[0]
	if got.InstanceID != "wf-42" {
		t.Errorf("instance id = %q, want wf-42", got.InstanceID)
	}
	if got.Transition.TransitionID != "tr-001" || got.Transition.ToState != "approved" {
		t.Errorf("transition = %+v", got.Transition)
	}
	if got.Proof == nil {
		t.Fatal("audit event carries no proof")
	}
	if len(got.Proof.EventHash) != 64 {
		t.Errorf("event hash = %q, want a sha256 hex digest", got.Proof.EventHash)
	}
	if !got.Proof.SidecarVerified {
		t.Error("all detail resolved via the sidecar; proof should be verified")
	}
	if got.Proof.BlockHeight == nil || *got.Proof.BlockHeight != 120045 {
		t.Errorf("block height = %v, want 120045", got.Proof.BlockHeight)
	}
	if got.Proof.StateRootHash == nil || *got.Proof.StateRootHash != "state-root-777" {
		t.Errorf("state root = %v, want state-root-777", got.Proof.StateRootHash)
	}
	if got.Proof.ContractHash == nil || *got.Proof.ContractHash != "hash-workflow-contract" {
		t.Errorf("contract hash = %v", got.Proof.ContractHash)
	}
}

// TestPipeline_StreamReconnectsAfterServerDrop restarts delivery on a fresh
// session after the event server drops the connection mid-stream.
func TestPipeline_StreamReconnectsAfterServerDrop(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var mu sync.Mutex
	session := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		session++
		current := session
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		if current == 1 {
			// First session dies right after the handshake.
			fmt.Fprintf(w, "data: {\"ApiVersion\":\"1.5.6\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(w, "data: {\"DeployProcessed\":{\"deploy_hash\":\"dh-after-reconnect\"}}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	received := make(chan domain.ChainEvent, 1)
	s := stream.New(
		stream.NewSSEConnector(srv.URL),
		func(_ context.Context, event domain.ChainEvent) {
			select {
			case received <- event:
			default:
			}
		},
		stream.BackoffConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go s.Run(ctx)
	defer s.Close()

	select {
	case event := <-received:
		if event.DeployHash != "dh-after-reconnect" {
			t.Errorf("got %+v, want the post-reconnect event", event)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream never recovered after the server dropped the session")
	}
}
