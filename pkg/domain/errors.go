package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no active session exists for a key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownStage is returned when a stage pointer resolves to nothing.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrChainOverrun is returned when auto-chaining hits the iteration ceiling.
	ErrChainOverrun = errors.New("chain overrun")

	// ErrMissingStartNode is returned when a flow has no start node.
	ErrMissingStartNode = errors.New("missing start node")

	// ErrMalformedGraph is returned for dangling edges, duplicate ids,
	// unknown node types or undecodable node data.
	ErrMalformedGraph = errors.New("malformed graph")

	// ErrBotNotFound is returned when a bot id is not registered.
	ErrBotNotFound = errors.New("bot not found")

	// ErrDisposed is returned when a disposed bot is asked to process a message.
	ErrDisposed = errors.New("bot disposed")
)

// StageError wraps a failure raised while executing a single stage.
type StageError struct {
	Stage  StageID
	NodeID string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (node %q): %v", e.Stage, e.NodeID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExternalCallError describes a failed http_request or ai_response call.
// It is recovered locally and never aborts a chain.
type ExternalCallError struct {
	Kind    string // "http" or "ai"
	NodeID  string
	Message string
	Err     error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s call from node %q failed: %s", e.Kind, e.NodeID, e.Message)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// Marker returns the value stored in the response variable on failure.
func (e *ExternalCallError) Marker() map[string]any {
	return map[string]any{"error": true, "message": e.Message}
}
