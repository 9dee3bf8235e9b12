package mcptype

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// LatestProtocolVersion is the highest protocol version this module
// advertises. A server proposes this as the default; clients may request
// an older version during initialize.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists every version this module can negotiate,
// newest first.
var SupportedProtocolVersions = []string{LatestProtocolVersion, "2025-03-26", "2024-11-05"}

///////////////////////////////////////////////////////////////////////////////
// IMPLEMENTATION

// Implementation identifies a client or server implementation, exchanged
// during initialize.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

///////////////////////////////////////////////////////////////////////////////
// INITIALIZE

type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// CONTENT

// Content is a sum type with variants {Text, Image, Resource}, discriminated
// on the wire by the "type" field.
type Content struct {
	Type     string `json:"type"` // "text" | "image" | "resource"
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`     // base64, for image
	MimeType string `json:"mimeType,omitempty"` // image or resource
	URI      string `json:"uri,omitempty"`      // resource
}

func NewTextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

func NewImageContent(base64Data, mimeType string) Content {
	return Content{Type: "image", Data: base64Data, MimeType: mimeType}
}

func NewResourceContent(uri, text, mimeType string) Content {
	return Content{Type: "resource", URI: uri, Text: text, MimeType: mimeType}
}

///////////////////////////////////////////////////////////////////////////////
// TOOLS

type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema"`
}

type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// RESOURCES

type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type ListResourcesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []Content `json:"contents"`
}

///////////////////////////////////////////////////////////////////////////////
// PROMPTS

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

type ListPromptsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

///////////////////////////////////////////////////////////////////////////////
// SAMPLING

type ModelPreferences struct {
	Hints                []string `json:"hints,omitempty"`
	CostPriority         float64  `json:"costPriority,omitempty"`
	SpeedPriority        float64  `json:"speedPriority,omitempty"`
	IntelligencePriority float64  `json:"intelligencePriority,omitempty"`
}

type SamplingMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

type CreateMessageParams struct {
	Messages         []SamplingMessage `json:"messages"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	MaxTokens        int               `json:"maxTokens,omitempty"`
}

type CreateMessageResult struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model"`
	StopReason string  `json:"stopReason,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// COMPLETION

type CompletionReference struct {
	Type string `json:"type"` // "ref/prompt" | "ref/resource"
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CompleteParams struct {
	Ref      CompletionReference `json:"ref"`
	Argument CompletionArgument  `json:"argument"`
}

type CompletionValues struct {
	Values  []string `json:"values"`
	Total   int      `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

type CompleteResult struct {
	Completion CompletionValues `json:"completion"`
}

///////////////////////////////////////////////////////////////////////////////
// LOGGING

// LogLevel mirrors RFC 5424 severities, as used by logging/setLevel.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

var logLevelRank = map[LogLevel]int{
	LogLevelDebug: 0, LogLevelInfo: 1, LogLevelNotice: 2, LogLevelWarning: 3,
	LogLevelError: 4, LogLevelCritical: 5, LogLevelAlert: 6, LogLevelEmergency: 7,
}

// Enabled reports whether a message at level `msg` should be forwarded when
// the session's minimum level is `min`. Unknown levels are always forwarded.
func (min LogLevel) Enabled(msg LogLevel) bool {
	mr, ok1 := logLevelRank[min]
	sr, ok2 := logLevelRank[msg]
	if !ok1 || !ok2 {
		return true
	}
	return sr >= mr
}

type SetLevelParams struct {
	Level LogLevel `json:"level"`
}

type LogMessageParams struct {
	Level  LogLevel `json:"level"`
	Logger string   `json:"logger,omitempty"`
	Data   any      `json:"data"`
}

///////////////////////////////////////////////////////////////////////////////
// ROOTS

type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

///////////////////////////////////////////////////////////////////////////////
// CANCELLATION / PROGRESS NOTIFICATIONS

type CancelledParams struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

type ProgressParams struct {
	ProgressToken any     `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
	Message       string  `json:"message,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// METHOD NAMES

const (
	MethodInitialize         = "initialize"
	MethodPing               = "ping"
	MethodToolsList          = "tools/list"
	MethodToolsCall          = "tools/call"
	MethodResourcesList      = "resources/list"
	MethodResourcesRead      = "resources/read"
	MethodPromptsList        = "prompts/list"
	MethodPromptsGet         = "prompts/get"
	MethodSamplingCreate     = "sampling/createMessage"
	MethodCompletionComplete = "completion/complete"
	MethodLoggingSetLevel    = "logging/setLevel"
	MethodRootsList          = "roots/list"

	NotificationInitialized      = "notifications/initialized"
	NotificationCancelled        = "notifications/cancelled"
	NotificationProgress         = "notifications/progress"
	NotificationMessage          = "notifications/message"
	NotificationToolsListChanged = "notifications/tools/list_changed"
	NotificationResourcesChanged = "notifications/resources/list_changed"
	NotificationPromptsChanged   = "notifications/prompts/list_changed"
	NotificationResourceUpdated  = "notifications/resources/updated"
)

// FeatureAreaOf returns the capability-gated feature area a method belongs
// to ("tools", "resources", "prompts", "sampling", "logging", "completion",
// "roots"),
// or "" if the method requires no capability (initialize, ping, and
// notifications are always dispatchable regardless of peer capabilities).
func FeatureAreaOf(method string) string {
	switch {
	case method == MethodInitialize || method == MethodPing:
		return ""
	case hasPrefix(method, "tools/"):
		return "tools"
	case hasPrefix(method, "resources/"):
		return "resources"
	case hasPrefix(method, "prompts/"):
		return "prompts"
	case hasPrefix(method, "sampling/"):
		return "sampling"
	case hasPrefix(method, "logging/"):
		return "logging"
	case hasPrefix(method, "completion/"):
		return "completion"
	case hasPrefix(method, "roots/"):
		return "roots"
	default:
		return ""
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
