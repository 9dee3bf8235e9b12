// Package mcptype defines the MCP domain types exchanged during
// initialization and over tools/resources/prompts/sampling, plus the
// wire-facing JSON-RPC error taxonomy these exchanges use.
package mcptype

import (
	"fmt"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS — wire-serializable error codes

const (
	CodeParseError             = -32700
	CodeInvalidRequest         = -32600
	CodeMethodNotFound         = -32601
	CodeInvalidParams          = -32602
	CodeInternalError          = -32603
	CodeRequestTimeout         = -32001
	CodeUnsupportedCapability  = -32002
	CodeAuthenticationRequired = -32003
	CodePermissionDenied       = -32004
)

///////////////////////////////////////////////////////////////////////////////
// WIRE ERROR CONSTRUCTORS

func NewError(code int, message string, data ...any) *jsonrpc.Error {
	e := &jsonrpc.Error{Code: code, Message: message}
	switch len(data) {
	case 0:
	case 1:
		e.Data = data[0]
	default:
		e.Data = data
	}
	return e
}

func ErrParse(message string) *jsonrpc.Error     { return NewError(CodeParseError, message) }
func ErrInvalidRequest(message string) *jsonrpc.Error {
	return NewError(CodeInvalidRequest, message)
}
func ErrMethodNotFound(method string) *jsonrpc.Error {
	return NewError(CodeMethodNotFound, "method not found", method)
}
func ErrInvalidParams(message string) *jsonrpc.Error {
	return NewError(CodeInvalidParams, message)
}
func ErrInternal(message string) *jsonrpc.Error { return NewError(CodeInternalError, message) }
func ErrTimeout(message string) *jsonrpc.Error  { return NewError(CodeRequestTimeout, message) }
func ErrUnsupportedCapability(feature string) *jsonrpc.Error {
	return NewError(CodeUnsupportedCapability, fmt.Sprintf("capability not supported: %s", feature))
}
func ErrAuthenticationRequired(message string) *jsonrpc.Error {
	return NewError(CodeAuthenticationRequired, message)
}
func ErrPermissionDenied(message string) *jsonrpc.Error {
	return NewError(CodePermissionDenied, message)
}

///////////////////////////////////////////////////////////////////////////////
// LOCAL-ONLY ERROR KINDS
//
// These never cross the wire as a code; when they must be surfaced to a
// peer they are mapped to the closest JSON-RPC code (see ToWireError).

// TransportError indicates the underlying transport failed or was shut
// down. It fails all outstanding requests on that transport.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// CancelledError indicates a request was cancelled, locally or by the peer.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "cancelled"
	}
	return fmt.Sprintf("cancelled: %s", e.Reason)
}

// ValidationError indicates a handler-side validation failure distinct
// from wire-level InvalidParams (e.g. config validation).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a local lookup miss (session id, stream id).
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ToWireError maps any error to a *jsonrpc.Error suitable for a response.
// A *jsonrpc.Error is passed through unchanged. Local-only kinds map to
// their closest code; anything else becomes InternalError.
func ToWireError(err error) *jsonrpc.Error {
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(*jsonrpc.Error); ok {
		return rpcErr
	}
	switch e := err.(type) {
	case *TransportError:
		return NewError(CodeInternalError, e.Error())
	case *CancelledError:
		return NewError(CodeInternalError, e.Error())
	case *ValidationError:
		return ErrInvalidParams(e.Message)
	case *NotFoundError:
		return NewError(CodeInvalidParams, e.Message)
	default:
		return ErrInternal(err.Error())
	}
}
