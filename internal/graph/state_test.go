package graph

import "testing"

func TestApplyDoesNotMutateOriginal(t *testing.T) {
	orig := State{
		Messages:   []Message{{Role: RoleUser, Content: "hi"}},
		RagContext: []string{"doc"},
	}
	next := orig.Apply(Patch{
		AppendMessages: []Message{{Role: RoleAssistant, Content: "hello"}},
		RagContext:     []string{"other"},
		Summary:        ptr("s"),
	})

	if len(orig.Messages) != 1 || orig.RagContext[0] != "doc" || orig.Summary != "" {
		t.Fatalf("original mutated: %+v", orig)
	}
	if len(next.Messages) != 2 || next.RagContext[0] != "other" || next.Summary != "s" {
		t.Fatalf("patch not applied: %+v", next)
	}
}

func TestApplyPrunesBeforeAppending(t *testing.T) {
	s := State{Messages: []Message{
		{Role: RoleUser, Content: "1"},
		{Role: RoleAssistant, Content: "2"},
		{Role: RoleUser, Content: "3"},
		{Role: RoleAssistant, Content: "4"},
	}}
	next := s.Apply(Patch{
		KeepLastMessages: ptr(2),
		AppendMessages:   []Message{{Role: RoleUser, Content: "5"}},
	})

	want := []string{"3", "4", "5"}
	if len(next.Messages) != len(want) {
		t.Fatalf("len(Messages) = %d, want %d", len(next.Messages), len(want))
	}
	for i, w := range want {
		if next.Messages[i].Content != w {
			t.Fatalf("Messages[%d] = %q, want %q", i, next.Messages[i].Content, w)
		}
	}
}

func TestApplyClearsRagContextWithEmptySlice(t *testing.T) {
	s := State{RagContext: []string{"doc"}}

	if got := s.Apply(Patch{}); got.RagContext == nil {
		t.Fatal("nil patch slice should leave context untouched")
	}
	if got := s.Apply(Patch{RagContext: []string{}}); got.RagContext != nil {
		t.Fatalf("empty patch slice should clear context, got %v", got.RagContext)
	}
}

func TestActiveQueryPrefersCorrected(t *testing.T) {
	s := State{
		Messages:       []Message{{Role: RoleUser, Content: "raw question"}},
		CorrectedQuery: "refined question",
	}
	if got := s.ActiveQuery(); got != "refined question" {
		t.Fatalf("ActiveQuery() = %q", got)
	}
	s.CorrectedQuery = ""
	if got := s.ActiveQuery(); got != "raw question" {
		t.Fatalf("ActiveQuery() = %q", got)
	}
}
