package observability

import "testing"

func TestNodeStageWindowSnapshot(t *testing.T) {
	w := NewNodeStageWindow(8)
	w.Observe("retrieve", 40)
	w.Observe("retrieve", 60)
	w.Observe("retrieve", 80)
	w.Observe("conversation", 500)

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(snap.Nodes))
	}
	// Sorted by node name: conversation, retrieve.
	if snap.Nodes[0].Node != "conversation" || snap.Nodes[1].Node != "retrieve" {
		t.Fatalf("unexpected node order: %q, %q", snap.Nodes[0].Node, snap.Nodes[1].Node)
	}
	r := snap.Nodes[1]
	if r.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", r.Samples)
	}
	if r.LastMS != 80 {
		t.Fatalf("LastMS = %.2f, want 80", r.LastMS)
	}
	if r.P50MS != 60 {
		t.Fatalf("P50MS = %.2f, want 60", r.P50MS)
	}
	if r.AvgMS != 60 {
		t.Fatalf("AvgMS = %.2f, want 60", r.AvgMS)
	}
}

func TestNodeStageWindowWraps(t *testing.T) {
	w := NewNodeStageWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe("summarize", float64(i*100))
	}
	snap := w.Snapshot()
	if len(snap.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1", len(snap.Nodes))
	}
	s := snap.Nodes[0]
	if s.Samples != 4 {
		t.Fatalf("Samples = %d, want 4 after wrap", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
}

func TestNodeStageWindowIgnoresBadInput(t *testing.T) {
	w := NewNodeStageWindow(4)
	w.Observe("", 10)
	w.Observe("retrieve", -1)
	if got := len(w.Snapshot().Nodes); got != 0 {
		t.Fatalf("len(Nodes) = %d, want 0", got)
	}
}
