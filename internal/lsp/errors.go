package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the session layer.
var (
	// ErrNoStartMethod indicates a configuration supplies no launch
	// command, no fixed endpoint, and no pre-built channel.
	ErrNoStartMethod = errors.New("no way to start session")

	// ErrSessionEnded indicates a request was issued after shutdown began.
	ErrSessionEnded = errors.New("session ended")

	// ErrSessionNotReady indicates a request was issued before the
	// handshake completed.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrInvalidTransition indicates an illegal state machine move.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrChannelClosed indicates the message channel has been released.
	ErrChannelClosed = errors.New("channel closed")
)

// RPCError represents a JSON-RPC error from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)
