package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// NodeStageStats summarizes the recent latency of one graph node.
type NodeStageStats struct {
	Node    string  `json:"node"`
	Samples int     `json:"samples"`
	LastMS  float64 `json:"last_ms"`
	AvgMS   float64 `json:"avg_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	P99MS   float64 `json:"p99_ms"`
}

// NodeStageSnapshot is the debug-endpoint view of the rolling window.
type NodeStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Nodes       []NodeStageStats `json:"nodes"`
}

// NodeStageWindow keeps the last N latency samples per graph node in a ring
// buffer, cheap enough to update on every node execution.
type NodeStageWindow struct {
	mu         sync.RWMutex
	maxSamples int
	nodes      map[string]*stageBuffer
}

type stageBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func NewNodeStageWindow(maxSamples int) *NodeStageWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &NodeStageWindow{
		maxSamples: maxSamples,
		nodes:      make(map[string]*stageBuffer),
	}
}

func (w *NodeStageWindow) Observe(node string, ms float64) {
	if w == nil || node == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.nodes[node]
	if !ok {
		buf = &stageBuffer{values: make([]float64, w.maxSamples)}
		w.nodes[node] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *NodeStageWindow) Snapshot() NodeStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.nodes))
	for node := range w.nodes {
		keys = append(keys, node)
	}
	sort.Strings(keys)

	nodes := make([]NodeStageStats, 0, len(keys))
	for _, node := range keys {
		buf := w.nodes[node]
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}

		nodes = append(nodes, NodeStageStats{
			Node:    node,
			Samples: n,
			LastMS:  round2(buf.last),
			AvgMS:   round2(sum / float64(n)),
			P50MS:   round2(quantile(samples, 0.50)),
			P95MS:   round2(quantile(samples, 0.95)),
			P99MS:   round2(quantile(samples, 0.99)),
		})
	}

	return NodeStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Nodes:       nodes,
	}
}

func (w *NodeStageWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nodes = make(map[string]*stageBuffer)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
