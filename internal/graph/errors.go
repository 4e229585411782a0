package graph

import (
	"errors"
	"fmt"
)

// NodeError reports a node handler failure. The turn stops at the failing
// node; state applied up to that point is still persisted.
type NodeError struct {
	Node Node
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// PersistenceError reports a checkpoint store failure. Distinct from NodeError
// so callers can decide whether to retry the whole turn; retrying re-invokes
// completion calls, so the turn is not idempotent.
type PersistenceError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNoRoute reports a transition table hole. This is a programming error,
// not a runtime condition.
var ErrNoRoute = errors.New("no route from node")
