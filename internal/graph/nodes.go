package graph

import "fmt"

// Node identifies a state in the turn graph. The set is closed: the executor
// dispatches over it exhaustively and treats anything else as a routing bug.
type Node string

const (
	NodeStart             Node = "start"
	NodeContextInjection  Node = "context_injection"
	NodeMemoryInjection   Node = "memory_injection"
	NodeInitialCheck      Node = "initial_check"
	NodeRetrieve          Node = "retrieve"
	NodeGenerateCandidate Node = "generate_candidate"
	NodeEvaluateCandidate Node = "evaluate_candidate"
	NodeRewriteQuery      Node = "rewrite_query"
	NodeConversation      Node = "conversation"
	NodeMemoryExtraction  Node = "memory_extraction"
	NodeSummarize         Node = "summarize"
	NodeEnd               Node = "end"
)

// next is the transition table. Conditional edges read the working state;
// every node routes somewhere or the executor aborts with ErrNoRoute.
//
//	start -> context_injection -> memory_injection -> initial_check
//	initial_check     -(requires_rag)->  retrieve | conversation
//	retrieve -> generate_candidate -> evaluate_candidate
//	evaluate_candidate -(sufficient)->   conversation
//	evaluate_candidate -(attempts<max)-> rewrite_query -> retrieve
//	evaluate_candidate -(exhausted)->    conversation
//	conversation -> memory_extraction -(messages>trigger)-> summarize -> end
func (e *Executor) next(n Node, s State) (Node, error) {
	switch n {
	case NodeStart:
		return NodeContextInjection, nil
	case NodeContextInjection:
		return NodeMemoryInjection, nil
	case NodeMemoryInjection:
		return NodeInitialCheck, nil
	case NodeInitialCheck:
		if s.RequiresRag {
			return NodeRetrieve, nil
		}
		return NodeConversation, nil
	case NodeRetrieve:
		return NodeGenerateCandidate, nil
	case NodeGenerateCandidate:
		return NodeEvaluateCandidate, nil
	case NodeEvaluateCandidate:
		if s.IsSufficient {
			return NodeConversation, nil
		}
		if s.RetrievalAttempts >= e.cfg.MaxRetrievalAttempts {
			// Loop bound exhausted: proceed with the best candidate so far.
			return NodeConversation, nil
		}
		return NodeRewriteQuery, nil
	case NodeRewriteQuery:
		return NodeRetrieve, nil
	case NodeConversation:
		return NodeMemoryExtraction, nil
	case NodeMemoryExtraction:
		if len(s.Messages) > e.cfg.SummaryTrigger {
			return NodeSummarize, nil
		}
		return NodeEnd, nil
	case NodeSummarize:
		return NodeEnd, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNoRoute, n)
	}
}
