package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/llm"
	"github.com/ent0n29/ava/internal/memory"
	"github.com/ent0n29/ava/internal/policy"
)

// Retriever answers "relevant documents for query X".
type Retriever interface {
	RelevantDocuments(ctx context.Context, query string) ([]string, error)
}

// ActivityProvider reports the current scheduled activity. Implementations
// must not fail; an empty string means no signal.
type ActivityProvider interface {
	CurrentActivity() string
}

// messagesPerTurn is how many messages one completed turn appends: the user
// message and the assistant reply. Summarize keeps the current turn on top of
// the retained tail so a fresh exchange is never folded away.
const messagesPerTurn = 2

const documentSeparator = "\n\n---\n\n"

type ragRouterVerdict struct {
	RequiresRag bool `json:"requires_rag"`
}

type answerEvaluation struct {
	IsSufficient   bool   `json:"is_sufficient"`
	CorrectedQuery string `json:"corrected_query"`
}

type memoryAnalysis struct {
	IsImportant     bool   `json:"is_important"`
	FormattedMemory string `json:"formatted_memory"`
}

// runNode dispatches a node handler. Each handler is a pure state transform
// with at most one external call; it returns a patch, never mutates s.
func (e *Executor) runNode(ctx context.Context, n Node, s State, onDelta llm.DeltaFunc) (Patch, error) {
	switch n {
	case NodeContextInjection:
		return e.handleContextInjection(s), nil
	case NodeMemoryInjection:
		return e.handleMemoryInjection(ctx, s)
	case NodeInitialCheck:
		return e.handleInitialCheck(ctx, s)
	case NodeRetrieve:
		return e.handleRetrieve(ctx, s)
	case NodeGenerateCandidate:
		return e.handleGenerateCandidate(ctx, s)
	case NodeEvaluateCandidate:
		return e.handleEvaluateCandidate(ctx, s)
	case NodeRewriteQuery:
		return e.handleRewriteQuery(s), nil
	case NodeConversation:
		return e.handleConversation(ctx, s, onDelta)
	case NodeMemoryExtraction:
		return e.handleMemoryExtraction(ctx, s)
	case NodeSummarize:
		return e.handleSummarize(ctx, s)
	default:
		return Patch{}, fmt.Errorf("%w: no handler for %s", ErrNoRoute, n)
	}
}

func (e *Executor) handleContextInjection(s State) Patch {
	act := e.activity.CurrentActivity()
	changed := act != s.CurrentActivity
	return Patch{
		CurrentActivity: ptr(act),
		ActivityChanged: ptr(changed),
	}
}

func (e *Executor) handleMemoryInjection(ctx context.Context, s State) (Patch, error) {
	lookup := recentWindow(s.Messages, e.cfg.RouterMessagesToAnalyze)
	if lookup == "" {
		return Patch{MemoryContext: ptr("")}, nil
	}

	records, err := e.memory.Search(ctx, lookup, e.cfg.MemoryTopK, nil)
	if err != nil {
		return Patch{}, err
	}

	var b strings.Builder
	for _, rec := range records {
		b.WriteString("- ")
		b.WriteString(rec.Text)
		b.WriteString("\n")
	}
	return Patch{MemoryContext: ptr(strings.TrimRight(b.String(), "\n"))}, nil
}

func (e *Executor) handleInitialCheck(ctx context.Context, s State) (Patch, error) {
	window := lastMessages(s.Messages, e.cfg.RouterMessagesToAnalyze)
	var verdict ragRouterVerdict
	err := e.llm.CompleteStructured(ctx, llm.Request{
		Model:       e.cfg.SmallModel,
		System:      ragRouterPrompt,
		Messages:    toLLMMessages(window),
		Temperature: e.cfg.SmallTemperature,
	}, &verdict)
	if err != nil {
		return Patch{}, err
	}

	// Every turn starts a fresh retrieval cycle: the loop fields from the
	// previous turn must not leak into this one.
	return Patch{
		RequiresRag:       ptr(verdict.RequiresRag),
		RagContext:        []string{},
		CandidateAnswer:   ptr(""),
		IsSufficient:      ptr(false),
		CorrectedQuery:    ptr(""),
		RetrievalAttempts: ptr(0),
	}, nil
}

func (e *Executor) handleRetrieve(ctx context.Context, s State) (Patch, error) {
	query := s.ActiveQuery()
	docs, err := e.retrieval.RelevantDocuments(ctx, query)
	if err != nil {
		return Patch{}, err
	}
	e.log.Debug("retrieved rag context",
		zap.Int("documents", len(docs)),
		zap.Int("attempt", s.RetrievalAttempts),
	)
	if docs == nil {
		docs = []string{}
	}
	return Patch{
		RagContext:      docs,
		CandidateAnswer: ptr(""),
	}, nil
}

func (e *Executor) handleGenerateCandidate(ctx context.Context, s State) (Patch, error) {
	question := s.ActiveQuery()
	prompt := fmt.Sprintf(ragAnswerPrompt, strings.Join(s.RagContext, documentSeparator), question)

	answer, err := e.llm.Complete(ctx, llm.Request{
		Model:       e.cfg.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return Patch{}, err
	}
	return Patch{CandidateAnswer: ptr(answer)}, nil
}

func (e *Executor) handleEvaluateCandidate(ctx context.Context, s State) (Patch, error) {
	prompt := fmt.Sprintf(answerEvaluatorPrompt,
		strings.Join(s.RagContext, documentSeparator),
		s.ActiveQuery(),
		s.CandidateAnswer,
	)

	var eval answerEvaluation
	err := e.llm.CompleteStructured(ctx, llm.Request{
		Model:       e.cfg.SmallModel,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: e.cfg.SmallTemperature,
	}, &eval)
	if err != nil {
		return Patch{}, err
	}
	return Patch{
		IsSufficient:   ptr(eval.IsSufficient),
		CorrectedQuery: ptr(eval.CorrectedQuery),
	}, nil
}

// handleRewriteQuery is the only side-effect-free node: the evaluator already
// produced the corrected query, so re-entering retrieval just burns one
// attempt.
func (e *Executor) handleRewriteQuery(s State) Patch {
	return Patch{RetrievalAttempts: ptr(s.RetrievalAttempts + 1)}
}

func (e *Executor) handleConversation(ctx context.Context, s State, onDelta llm.DeltaFunc) (Patch, error) {
	system := e.buildConversationSystem(s)

	reply, err := e.llm.CompleteStream(ctx, llm.Request{
		Model:       e.cfg.Model,
		System:      system,
		Messages:    toLLMMessages(s.Messages),
		Temperature: e.cfg.Temperature,
	}, onDelta)
	if err != nil {
		return Patch{}, err
	}
	return Patch{
		AppendMessages: []Message{{Role: RoleAssistant, Content: reply}},
	}, nil
}

func (e *Executor) buildConversationSystem(s State) string {
	var b strings.Builder
	b.WriteString(personaPrompt)
	if s.CurrentActivity != "" {
		b.WriteString("\n\nRight now you are: ")
		b.WriteString(s.CurrentActivity)
	}
	if s.MemoryContext != "" {
		b.WriteString("\n\nThings you remember about the user:\n")
		b.WriteString(s.MemoryContext)
	}
	if s.Summary != "" {
		b.WriteString("\n\nSummary of the conversation so far: ")
		b.WriteString(s.Summary)
	}
	if s.RequiresRag && s.CandidateAnswer != "" {
		b.WriteString("\n\nUse this researched answer as grounding for your reply:\n")
		b.WriteString(s.CandidateAnswer)
	}
	return b.String()
}

func (e *Executor) handleMemoryExtraction(ctx context.Context, s State) (Patch, error) {
	if len(s.Messages) < messagesPerTurn {
		return Patch{}, nil
	}

	pair := s.Messages[len(s.Messages)-messagesPerTurn:]
	var exchange strings.Builder
	for _, m := range pair {
		exchange.WriteString(string(m.Role))
		exchange.WriteString(": ")
		exchange.WriteString(m.Content)
		exchange.WriteString("\n")
	}

	var analysis memoryAnalysis
	err := e.llm.CompleteStructured(ctx, llm.Request{
		Model:       e.cfg.SmallModel,
		System:      memoryAnalysisPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: exchange.String()}},
		Temperature: e.cfg.SmallTemperature,
	}, &analysis)
	if err != nil {
		return Patch{}, err
	}
	if !analysis.IsImportant || strings.TrimSpace(analysis.FormattedMemory) == "" {
		return Patch{}, nil
	}

	// Stored facts must stay non-identifying.
	fact, _ := policy.RedactPII(strings.TrimSpace(analysis.FormattedMemory))
	err = e.memory.StoreFact(ctx, fact, memory.Metadata{
		Source:    memory.SourceConversation,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return Patch{}, err
	}
	e.log.Debug("stored conversational memory", zap.String("fact", fact))
	return Patch{}, nil
}

func (e *Executor) handleSummarize(ctx context.Context, s State) (Patch, error) {
	keep := e.cfg.MessagesAfterSummary + messagesPerTurn
	if keep >= len(s.Messages) {
		return Patch{}, nil
	}
	folded := s.Messages[:len(s.Messages)-keep]

	instruction := summaryCreatePrompt
	if s.Summary != "" {
		instruction = fmt.Sprintf(summaryExtendPrompt, s.Summary)
	}
	msgs := toLLMMessages(folded)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: instruction})

	summary, err := e.llm.Complete(ctx, llm.Request{
		Model:       e.cfg.Model,
		Messages:    msgs,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return Patch{}, err
	}
	return Patch{
		Summary:          ptr(summary),
		KeepLastMessages: ptr(keep),
	}, nil
}

func lastMessages(msgs []Message, n int) []Message {
	if n <= 0 || n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func recentWindow(msgs []Message, n int) string {
	window := lastMessages(msgs, n)
	parts := make([]string, 0, len(window))
	for _, m := range window {
		parts = append(parts, m.Content)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func toLLMMessages(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}
