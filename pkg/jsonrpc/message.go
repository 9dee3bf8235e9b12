package jsonrpc

import (
	"encoding/json"
	"fmt"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const Version = "2.0"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Request is a JSON-RPC request: it has an id, a method and optional params.
// It requires exactly one response.
type Request struct {
	Version string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is a JSON-RPC notification: it has a method and optional
// params, but no id, and produces no response.
type Notification struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response: it has the id copied from the request
// and exactly one of Result or Error.
type Response struct {
	Version string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Data != nil {
		return fmt.Sprintf("%d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewRequest(id ID, method string, params json.RawMessage) *Request {
	return &Request{Version: Version, ID: id, Method: method, Params: params}
}

func NewNotification(method string, params json.RawMessage) *Notification {
	return &Notification{Version: Version, Method: method, Params: params}
}

func NewResultResponse(id ID, result json.RawMessage) *Response {
	return &Response{Version: Version, ID: id, Result: result}
}

func NewErrorResponse(id ID, err *Error) *Response {
	return &Response{Version: Version, ID: id, Error: err}
}

///////////////////////////////////////////////////////////////////////////////
// MESSAGE (untagged envelope)

// Kind classifies a decoded Message.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
)

// Message is the untagged JSON-RPC envelope: requests, notifications and
// responses are distinguished by field presence, not an explicit
// discriminator. "method" without "id" is a notification, "method" with
// "id" is a request, and "result"/"error" (no "method") is a response.
// Decoding a raw message therefore goes through this type first.
type Message struct {
	Version string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind classifies the message by field presence.
func (m *Message) Kind() Kind {
	switch {
	case m.Method != "" && m.ID == nil:
		return KindNotification
	case m.Method != "":
		return KindRequest
	default:
		return KindResponse
	}
}

func (m *Message) AsRequest() *Request {
	var id ID
	if m.ID != nil {
		id = *m.ID
	}
	return &Request{Version: m.Version, ID: id, Method: m.Method, Params: m.Params}
}

func (m *Message) AsNotification() *Notification {
	return &Notification{Version: m.Version, Method: m.Method, Params: m.Params}
}

func (m *Message) AsResponse() *Response {
	var id ID
	if m.ID != nil {
		id = *m.ID
	}
	return &Response{Version: m.Version, ID: id, Result: m.Result, Error: m.Error}
}

///////////////////////////////////////////////////////////////////////////////
// DECODE

// DecodeMessage parses a single JSON-RPC message from bytes using field
// presence to distinguish request/notification/response.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != Version {
		return nil, fmt.Errorf("jsonrpc: unsupported version %q", m.Version)
	}
	return &m, nil
}

// DecodeBody decodes an HTTP/stdio body as either a single message or a
// batch. A batch is a JSON array of one or more requests/notifications; an
// empty batch ([]) is invalid.
func DecodeBody(data []byte) ([]*Message, error) {
	trimmed := trimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("jsonrpc: empty body")
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, err
		}
		if len(raws) == 0 {
			return nil, fmt.Errorf("jsonrpc: empty batch")
		}
		out := make([]*Message, 0, len(raws))
		for _, raw := range raws {
			m, err := DecodeMessage(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}

	m, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	return []*Message{m}, nil
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isWS(b[i]) {
		i++
	}
	for j > i && isWS(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isWS(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// EncodeResponses encodes a set of responses as a single JSON-RPC response
// if there is exactly one, or as a batch array in request order otherwise.
func EncodeResponses(responses []*Response) ([]byte, error) {
	if len(responses) == 1 {
		return json.Marshal(responses[0])
	}
	return json.Marshal(responses)
}
