package protocol

import (
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// CapabilityChecker reports whether a feature area (as returned by
// mcptype.FeatureAreaOf) is available on one side of the connection. Conn
// asks the local checker before dispatching a request to a handler, and
// asks the peer checker before sending one, so a request for a capability
// nobody advertised fails fast with ErrUnsupportedCapability rather than a
// MethodNotFound surprise deep in a handler registry.
type CapabilityChecker interface {
	HasCapability(area string) bool
}

// serverCapabilityChecker adapts mcptype.ServerCapabilities.
type serverCapabilityChecker struct {
	caps mcptype.ServerCapabilities
}

func (c serverCapabilityChecker) HasCapability(area string) bool {
	switch area {
	case "":
		return true
	case "tools":
		return c.caps.HasTools()
	case "resources":
		return c.caps.HasResources()
	case "prompts":
		return c.caps.HasPrompts()
	case "logging":
		return c.caps.HasLogging()
	case "completion":
		return c.caps.HasCompletions()
	default:
		return false
	}
}

// clientCapabilityChecker adapts mcptype.ClientCapabilities.
type clientCapabilityChecker struct {
	caps mcptype.ClientCapabilities
}

func (c clientCapabilityChecker) HasCapability(area string) bool {
	switch area {
	case "":
		return true
	case "sampling":
		return c.caps.HasSampling()
	case "roots":
		return c.caps.HasRoots()
	default:
		return false
	}
}

// ServerCapabilityChecker wraps a ServerCapabilities as a CapabilityChecker.
func ServerCapabilityChecker(caps mcptype.ServerCapabilities) CapabilityChecker {
	return serverCapabilityChecker{caps: caps}
}

// ClientCapabilityChecker wraps a ClientCapabilities as a CapabilityChecker.
func ClientCapabilityChecker(caps mcptype.ClientCapabilities) CapabilityChecker {
	return clientCapabilityChecker{caps: caps}
}

// alwaysChecker grants every area; used before the peer's capabilities are
// known (e.g. while validating the initialize request itself).
type alwaysChecker struct{}

func (alwaysChecker) HasCapability(string) bool { return true }
