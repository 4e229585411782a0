package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/config"
	"github.com/ent0n29/ava/internal/embedding"
	"github.com/ent0n29/ava/internal/graph"
	"github.com/ent0n29/ava/internal/llm"
	"github.com/ent0n29/ava/internal/memory"
	"github.com/ent0n29/ava/internal/observability"
	"github.com/ent0n29/ava/internal/retrieval"
)

type fakeEngine struct {
	reply       string
	requiresRag bool
	err         error
	sessions    []string
}

func (f *fakeEngine) RunTurn(_ context.Context, sessionID, text string, onDelta llm.DeltaFunc) (graph.Result, error) {
	f.sessions = append(f.sessions, sessionID)
	if f.err != nil {
		return graph.Result{}, f.err
	}
	if onDelta != nil {
		if err := onDelta(f.reply); err != nil {
			return graph.Result{}, err
		}
	}
	return graph.Result{Reply: f.reply, RequiresRag: f.requiresRag}, nil
}

// metricsSeq keeps prometheus namespaces unique across tests; promauto
// registers into the process-global registry.
var metricsSeq atomic.Int64

func newTestServer(t *testing.T, engine Engine) *httptest.Server {
	t.Helper()
	store := memory.NewInMemoryStore(embedding.NewMock(16))
	ingester := retrieval.NewIngester(store, zap.NewNop())
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", metricsSeq.Add(1)))
	srv := New(config.Config{}, engine, ingester, metrics, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return res
}

func TestTurnEndpoint(t *testing.T) {
	engine := &fakeEngine{reply: "hello!", requiresRag: true}
	ts := newTestServer(t, engine)

	res := postJSON(t, ts.URL+"/v1/chat/turn", map[string]string{
		"session_id": "s1",
		"text":       "hi",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload turnResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Reply != "hello!" || !payload.RequiresRag {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.SessionID != "s1" || payload.TurnID == "" {
		t.Fatalf("missing ids: %+v", payload)
	}
}

func TestTurnEndpointGeneratesSessionID(t *testing.T) {
	engine := &fakeEngine{reply: "hi"}
	ts := newTestServer(t, engine)

	res := postJSON(t, ts.URL+"/v1/chat/turn", map[string]string{"text": "hello"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload turnResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.SessionID == "" {
		t.Fatal("session_id not generated")
	}
	if len(engine.sessions) != 1 || engine.sessions[0] != payload.SessionID {
		t.Fatalf("engine saw sessions %v, response had %q", engine.sessions, payload.SessionID)
	}
}

func TestTurnEndpointRejectsEmptyText(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	res := postJSON(t, ts.URL+"/v1/chat/turn", map[string]string{"session_id": "s1"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestTurnEndpointNodeFailure(t *testing.T) {
	engine := &fakeEngine{err: &graph.NodeError{Node: graph.NodeRetrieve, Err: errors.New("index offline")}}
	ts := newTestServer(t, engine)

	res := postJSON(t, ts.URL+"/v1/chat/turn", map[string]string{"session_id": "s1", "text": "hi"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadGateway)
	}

	var payload errorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "node_failure" {
		t.Fatalf("code = %q, want node_failure", payload.Code)
	}
}

func TestTurnEndpointPersistenceFailure(t *testing.T) {
	engine := &fakeEngine{err: &graph.PersistenceError{Op: "save", Err: errors.New("db down")}}
	ts := newTestServer(t, engine)

	res := postJSON(t, ts.URL+"/v1/chat/turn", map[string]string{"session_id": "s1", "text": "hi"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestIngestDocument(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	res := postJSON(t, ts.URL+"/v1/documents", map[string]string{
		"text": "Binary search trees keep keys ordered so lookups can skip half the remaining nodes at each step.",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var payload map[string]int
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["chunks"] < 1 {
		t.Fatalf("chunks = %d, want >= 1", payload["chunks"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	for _, path := range []string{"/healthz", "/readyz", "/v1/perf/nodes"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}
