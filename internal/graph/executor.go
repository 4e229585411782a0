package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/llm"
	"github.com/ent0n29/ava/internal/memory"
	"github.com/ent0n29/ava/internal/observability"
)

// Checkpointer persists per-session orchestration state.
type Checkpointer interface {
	// Load returns the stored state and whether one existed.
	Load(ctx context.Context, sessionID string) (State, bool, error)
	Save(ctx context.Context, sessionID string, st State) error
}

// Config holds the engine tunables.
type Config struct {
	Model            string
	SmallModel       string
	Temperature      float32
	SmallTemperature float32

	MemoryTopK              int
	RouterMessagesToAnalyze int
	SummaryTrigger          int
	MessagesAfterSummary    int
	MaxRetrievalAttempts    int
}

func (c Config) withDefaults() Config {
	if c.MemoryTopK <= 0 {
		c.MemoryTopK = 3
	}
	if c.RouterMessagesToAnalyze <= 0 {
		c.RouterMessagesToAnalyze = 3
	}
	if c.SummaryTrigger <= 0 {
		c.SummaryTrigger = 20
	}
	if c.MessagesAfterSummary <= 0 {
		c.MessagesAfterSummary = 5
	}
	if c.MaxRetrievalAttempts < 0 {
		c.MaxRetrievalAttempts = 0
	}
	if c.SmallModel == "" {
		c.SmallModel = c.Model
	}
	return c
}

// Deps are the engine's collaborators, injected once at construction.
type Deps struct {
	Checkpoint Checkpointer
	LLM        llm.Client
	Memory     memory.Store
	Retrieval  Retriever
	Activity   ActivityProvider
	Metrics    *observability.Metrics
	Log        *zap.Logger
}

// Executor sequences node handlers over per-session state: load, run the
// graph, save. Turns on the same session are serialized; turns on different
// sessions run independently.
type Executor struct {
	cfg        Config
	checkpoint Checkpointer
	llm        llm.Client
	memory     memory.Store
	retrieval  Retriever
	activity   ActivityProvider
	metrics    *observability.Metrics
	log        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// maxSteps bounds a single turn's node transitions. A fully exhausted
// retrieval loop needs 4*(attempts+1) loop transitions on top of the fixed
// topology, so the bound scales with the configured attempts; hitting it
// means the transition table has a cycle bug, not a long turn.
func (e *Executor) maxSteps() int {
	return 12 + 4*(e.cfg.MaxRetrievalAttempts+1)
}

func New(cfg Config, deps Deps) *Executor {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Executor{
		cfg:        cfg.withDefaults(),
		checkpoint: deps.Checkpoint,
		llm:        deps.LLM,
		memory:     deps.Memory,
		retrieval:  deps.Retrieval,
		activity:   deps.Activity,
		metrics:    deps.Metrics,
		log:        deps.Log,
		locks:      make(map[string]*sessionLock),
	}
}

// Result is the outcome of one completed turn.
type Result struct {
	Reply       string
	RequiresRag bool
	State       State
}

// RunTurn drives one user message through the graph and persists the updated
// session state. onDelta, when non-nil, receives reply fragments as the
// conversation node streams them.
//
// State is persisted on success, on node failure, and on cancellation; only a
// checkpoint failure loses the turn, and that is reported as a distinct
// PersistenceError because retrying re-runs paid model calls.
func (e *Executor) RunTurn(ctx context.Context, sessionID, text string, onDelta llm.DeltaFunc) (Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Result{}, fmt.Errorf("session id required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, fmt.Errorf("message text required")
	}

	unlock := e.lockSession(sessionID)
	defer unlock()

	started := time.Now()
	if e.metrics != nil {
		e.metrics.ActiveTurns.Inc()
		defer e.metrics.ActiveTurns.Dec()
		defer func() {
			e.metrics.TurnLatency.Observe(time.Since(started).Seconds())
		}()
	}

	st, _, err := e.checkpoint.Load(ctx, sessionID)
	if err != nil {
		e.countTurn("persistence_error")
		return Result{}, &PersistenceError{Op: "load", Err: err}
	}

	st = st.Apply(Patch{AppendMessages: []Message{{Role: RoleUser, Content: text}}})

	node := NodeStart
	maxSteps := e.maxSteps()
	for steps := 0; ; steps++ {
		if steps > maxSteps {
			e.saveBestEffort(ctx, sessionID, st)
			e.countTurn("route_error")
			return Result{}, fmt.Errorf("%w: turn exceeded %d steps at %s", ErrNoRoute, maxSteps, node)
		}

		next, err := e.next(node, st)
		if err != nil {
			e.saveBestEffort(ctx, sessionID, st)
			e.countTurn("route_error")
			return Result{}, err
		}
		node = next
		if node == NodeEnd {
			break
		}

		if err := ctx.Err(); err != nil {
			// Cancelled between nodes: keep what completed.
			e.saveBestEffort(ctx, sessionID, st)
			e.countTurn("cancelled")
			return Result{}, &NodeError{Node: node, Err: err}
		}

		nodeStart := time.Now()
		patch, err := e.runNode(ctx, node, st, onDelta)
		if e.metrics != nil {
			e.metrics.Stages.Observe(string(node), float64(time.Since(nodeStart).Milliseconds()))
		}
		if err != nil {
			e.saveBestEffort(ctx, sessionID, st)
			if e.metrics != nil {
				e.metrics.NodeFailures.WithLabelValues(string(node)).Inc()
			}
			e.countTurn("node_error")
			e.log.Warn("node failed",
				zap.String("session_id", sessionID),
				zap.String("node", string(node)),
				zap.Error(err),
			)
			return Result{}, &NodeError{Node: node, Err: err}
		}
		st = st.Apply(patch)
	}

	if err := e.checkpoint.Save(ctx, sessionID, st); err != nil {
		e.countTurn("persistence_error")
		return Result{}, &PersistenceError{Op: "save", Err: err}
	}

	if e.metrics != nil {
		e.metrics.RetrievalAttempts.Observe(float64(st.RetrievalAttempts))
	}
	e.countTurn("ok")

	return Result{
		Reply:       st.LastAssistantMessage(),
		RequiresRag: st.RequiresRag,
		State:       st,
	}, nil
}

func (e *Executor) saveBestEffort(ctx context.Context, sessionID string, st State) {
	// The turn is already failing; a save error here only loses partial
	// progress, so it is logged rather than layered onto the original error.
	saveCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := e.checkpoint.Save(saveCtx, sessionID, st); err != nil {
		e.log.Error("checkpoint save after turn failure",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (e *Executor) countTurn(outcome string) {
	if e.metrics != nil {
		e.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	}
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession serializes turns per session id. Load-modify-save on shared
// state would otherwise lose one of two concurrent turns' updates. Entries
// are refcounted and dropped once uncontended, so the map tracks in-flight
// sessions rather than every session ever seen.
func (e *Executor) lockSession(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sessionLock{}
		e.locks[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.mu.Unlock()
	}
}
