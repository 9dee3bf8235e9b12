package mcptype

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Feature is a single optional capability sub-record (e.g. "tools",
// "resources"). Absence of a *Feature in a Capabilities struct means "not
// supported"; a non-nil, zero-value Feature means "supported with
// defaults".
type Feature struct {
	ListChanged bool `json:"listChanged,omitempty"`
	Subscribe   bool `json:"subscribe,omitempty"`
}

// ServerCapabilities is the capability record a server advertises during
// initialize. Each field is a pointer so that an absent feature serializes
// as an absent key, and an empty-but-present feature serializes as {}.
type ServerCapabilities struct {
	Prompts      *Feature       `json:"prompts,omitempty"`
	Resources    *Feature       `json:"resources,omitempty"`
	Tools        *Feature       `json:"tools,omitempty"`
	Logging      *Feature       `json:"logging,omitempty"`
	Completions  *Feature       `json:"completions,omitempty"`
	Experimental map[string]any `json:"experimental,omitempty"`
}

// ClientCapabilities is the capability record a client advertises during
// initialize.
type ClientCapabilities struct {
	Sampling     *Feature       `json:"sampling,omitempty"`
	Roots        *Feature       `json:"roots,omitempty"`
	Experimental map[string]any `json:"experimental,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// HasTools reports whether the tools capability is present.
func (c ServerCapabilities) HasTools() bool { return c.Tools != nil }

// HasResources reports whether the resources capability is present.
func (c ServerCapabilities) HasResources() bool { return c.Resources != nil }

// HasPrompts reports whether the prompts capability is present.
func (c ServerCapabilities) HasPrompts() bool { return c.Prompts != nil }

// HasLogging reports whether the logging capability is present.
func (c ServerCapabilities) HasLogging() bool { return c.Logging != nil }

// HasCompletions reports whether the completions capability is present.
func (c ServerCapabilities) HasCompletions() bool { return c.Completions != nil }

// HasNotifications reports whether any feature that can emit list-changed
// notifications is present; used to decide whether to open a background
// SSE listener.
func (c ServerCapabilities) HasNotifications() bool {
	for _, f := range []*Feature{c.Prompts, c.Resources, c.Tools, c.Logging} {
		if f != nil {
			return true
		}
	}
	return false
}

// HasSampling reports whether the client advertised sampling support.
func (c ClientCapabilities) HasSampling() bool { return c.Sampling != nil }

// HasRoots reports whether the client advertised roots support.
func (c ClientCapabilities) HasRoots() bool { return c.Roots != nil }

///////////////////////////////////////////////////////////////////////////////
// ENABLED-FEATURE HELPERS

// Enabled returns a Feature pointer for use in a With... builder call, e.g.
// caps.Tools = mcptype.Enabled(mcptype.Feature{ListChanged: true}).
func Enabled(f Feature) *Feature {
	return &f
}
