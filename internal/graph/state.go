package graph

// Role tags a conversation message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the per-session orchestration state. It is the unit persisted by
// the checkpoint store, so it must round-trip through JSON exactly.
type State struct {
	Messages        []Message `json:"messages"`
	Summary         string    `json:"summary,omitempty"`
	MemoryContext   string    `json:"memory_context,omitempty"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	ActivityChanged bool      `json:"activity_changed,omitempty"`

	RequiresRag       bool     `json:"requires_rag,omitempty"`
	RagContext        []string `json:"rag_context,omitempty"`
	CandidateAnswer   string   `json:"candidate_answer,omitempty"`
	IsSufficient      bool     `json:"is_sufficient,omitempty"`
	CorrectedQuery    string   `json:"corrected_query,omitempty"`
	RetrievalAttempts int      `json:"retrieval_attempts,omitempty"`
}

// Patch is the delta a node handler returns. Handlers never mutate State
// directly; the executor applies patches through Apply, keeping single-writer
// discipline even if handlers are parallelized later.
type Patch struct {
	AppendMessages []Message
	// KeepLastMessages prunes Messages to the given tail length when set.
	// Pruning runs before AppendMessages.
	KeepLastMessages *int

	Summary         *string
	MemoryContext   *string
	CurrentActivity *string
	ActivityChanged *bool

	RequiresRag *bool
	// RagContext replaces the retrieved documents when non-nil. Assign an
	// empty non-nil slice to clear.
	RagContext        []string
	CandidateAnswer   *string
	IsSufficient      *bool
	CorrectedQuery    *string
	RetrievalAttempts *int
}

// Apply merges a patch into a copy of the state and returns it.
func (s State) Apply(p Patch) State {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	out.RagContext = append([]string(nil), s.RagContext...)

	if p.KeepLastMessages != nil {
		keep := *p.KeepLastMessages
		if keep < 0 {
			keep = 0
		}
		if keep < len(out.Messages) {
			out.Messages = append([]Message(nil), out.Messages[len(out.Messages)-keep:]...)
		}
	}
	out.Messages = append(out.Messages, p.AppendMessages...)

	if p.Summary != nil {
		out.Summary = *p.Summary
	}
	if p.MemoryContext != nil {
		out.MemoryContext = *p.MemoryContext
	}
	if p.CurrentActivity != nil {
		out.CurrentActivity = *p.CurrentActivity
	}
	if p.ActivityChanged != nil {
		out.ActivityChanged = *p.ActivityChanged
	}
	if p.RequiresRag != nil {
		out.RequiresRag = *p.RequiresRag
	}
	if p.RagContext != nil {
		out.RagContext = append([]string(nil), p.RagContext...)
		if len(out.RagContext) == 0 {
			out.RagContext = nil
		}
	}
	if p.CandidateAnswer != nil {
		out.CandidateAnswer = *p.CandidateAnswer
	}
	if p.IsSufficient != nil {
		out.IsSufficient = *p.IsSufficient
	}
	if p.CorrectedQuery != nil {
		out.CorrectedQuery = *p.CorrectedQuery
	}
	if p.RetrievalAttempts != nil {
		out.RetrievalAttempts = *p.RetrievalAttempts
	}
	return out
}

// LastUserMessage returns the most recent user message content, or "".
func (s State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the most recent assistant message content, or "".
func (s State) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// ActiveQuery is the retrieval query for the current attempt: the corrected
// query once the evaluator rewrote it, the raw user message before that.
func (s State) ActiveQuery() string {
	if s.CorrectedQuery != "" {
		return s.CorrectedQuery
	}
	return s.LastUserMessage()
}

func ptr[T any](v T) *T { return &v }
