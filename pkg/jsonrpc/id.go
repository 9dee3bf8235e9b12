// Package jsonrpc implements the JSON-RPC 2.0 message envelope used by the
// MCP protocol core: requests, notifications, responses and batches, plus
// tagged-union identifiers (RequestId, ProgressToken) that keep an integer
// id and a string id with the same text from colliding.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ID is a tagged union of {integer, string}, matching the JSON-RPC "id"
// field. The zero value is the "no id" case (used by notifications).
// Equality preserves the tag: the integer 1 and the string "1" are distinct.
type ID struct {
	isString bool
	isSet    bool
	num      int64
	str      string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewIntID returns an ID wrapping an integer.
func NewIntID(v int64) ID {
	return ID{isSet: true, num: v}
}

// NewStringID returns an ID wrapping a string.
func NewStringID(v string) ID {
	return ID{isSet: true, isString: true, str: v}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// IsZero returns true if the ID was never set (the notification case).
func (id ID) IsZero() bool {
	return !id.isSet
}

// IsString returns true if the ID holds a string.
func (id ID) IsString() bool {
	return id.isString
}

// Int returns the integer value and true, if the ID holds an integer.
func (id ID) Int() (int64, bool) {
	if id.isSet && !id.isString {
		return id.num, true
	}
	return 0, false
}

// String returns the string value and true, if the ID holds a string.
func (id ID) String() (string, bool) {
	if id.isSet && id.isString {
		return id.str, true
	}
	return "", false
}

// Equal reports whether two ids share the same tag and value.
func (id ID) Equal(other ID) bool {
	if id.isSet != other.isSet {
		return false
	}
	if !id.isSet {
		return true
	}
	if id.isString != other.isString {
		return false
	}
	if id.isString {
		return id.str == other.str
	}
	return id.num == other.num
}

// Key returns a comparable value suitable for use as a map key, preserving
// the tag (so the integer 1 and the string "1" hash differently).
func (id ID) Key() any {
	if !id.isSet {
		return nil
	}
	if id.isString {
		return "s:" + id.str
	}
	return fmt.Sprintf("i:%d", id.num)
}

func (id ID) GoString() string {
	if !id.isSet {
		return "jsonrpc.ID(nil)"
	}
	if id.isString {
		return fmt.Sprintf("jsonrpc.ID(%q)", id.str)
	}
	return fmt.Sprintf("jsonrpc.ID(%d)", id.num)
}

///////////////////////////////////////////////////////////////////////////////
// MARSHAL / UNMARSHAL

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.isSet {
		return []byte("null"), nil
	}
	if id.isString {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*id = ID{}
	case string:
		*id = NewStringID(v)
	case float64:
		*id = NewIntID(int64(v))
	default:
		return fmt.Errorf("jsonrpc: invalid id value %v", raw)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PROGRESS TOKEN

// ProgressToken is a tagged union of {integer, string}, chosen by the
// request originator and echoed back in progress notifications.
type ProgressToken = ID
