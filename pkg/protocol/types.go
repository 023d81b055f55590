package protocol

// ServerInfo identifies this bridge to a connecting client.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities advertises the three registries. Empty objects — their
// presence, not their contents, is what a client checks during the
// handshake.
type Capabilities struct {
	Tools     map[string]any `json:"tools"`
	Resources map[string]any `json:"resources"`
	Prompts   map[string]any `json:"prompts"`
}

// InitializeResult is the result of the "initialize" method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// ToolAnnotations carries a tool's optional semantic hints.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	DestructiveHint bool   `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
	OpenWorldHint   bool   `json:"openWorldHint,omitempty"`
}

// JSONSchema is a minimal JSON-Schema subset sufficient for tool
// parameter shapes: type, description, required, enum, default, bounds,
// and nested item/property schemas.
type JSONSchema struct {
	Type        string                 `json:"type,omitempty"`
	Description string                 `json:"description,omitempty"`
	Enum        []any                  `json:"enum,omitempty"`
	Default     any                    `json:"default,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
}

// ToolDefinition is one entry of tools/list's result.
type ToolDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema JSONSchema       `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// ToolsListResult is the result of "tools/list".
type ToolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

// Content is a single content block of a tool/prompt result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result of "tools/call". Tool-level failures are
// carried in-band (IsError:true) rather than as an RPC error: a tool that
// ran and failed is not a malformed call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// ResourceDefinition is one entry of resources/list's result (static URIs
// only — templates are listed separately).
type ResourceDefinition struct {
	URI         string `json:"uri"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourcesListResult is the result of "resources/list".
type ResourcesListResult struct {
	Resources []ResourceDefinition `json:"resources"`
}

// ResourceTemplateDefinition is one entry of resources/templates/list's
// result.
type ResourceTemplateDefinition struct {
	URITemplate string `json:"uriTemplate"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplatesListResult is the result of "resources/templates/list".
type ResourceTemplatesListResult struct {
	ResourceTemplates []ResourceTemplateDefinition `json:"resourceTemplates"`
}

// ResourceContent is one entry of resources/read's "contents" array.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ResourcesReadResult is the result of "resources/read".
type ResourcesReadResult struct {
	Contents []ResourceContent `json:"contents"`
}

// PromptArgumentDefinition is one entry of a prompt's argument list.
type PromptArgumentDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptDefinition is one entry of prompts/list's result.
type PromptDefinition struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	Arguments   []PromptArgumentDefinition `json:"arguments,omitempty"`
}

// PromptsListResult is the result of "prompts/list".
type PromptsListResult struct {
	Prompts []PromptDefinition `json:"prompts"`
}

// PromptMessage is one entry of a prompts/get result's "messages" array.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// PromptGetResult is the result of "prompts/get".
type PromptGetResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}
