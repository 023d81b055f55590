// Package router implements the JSON-RPC 2.0 envelope handling and MCP
// method dispatch: parsing, routing to the tool/resource/prompt
// registries, and building responses with bit-exact id preservation.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcphost/bridge/pkg/logger"
	"github.com/mcphost/bridge/pkg/protocol"
	"github.com/mcphost/bridge/pkg/registry"
)

// ServerInfo is reported back from "initialize".
type ServerInfo struct {
	Name    string
	Version string
}

// Router owns the MCP method table.
type Router struct {
	Registries *registry.Registries
	Info       ServerInfo

	// SetVerboseLogging, if set, backs the "logging/setLevel" method.
	SetVerboseLogging func(verbose bool)
}

// New constructs a Router over the given registries.
func New(regs *registry.Registries, info ServerInfo) *Router {
	return &Router{Registries: regs, Info: info}
}

// Handle parses body and dispatches it. It returns nil for a notification
// (no "id" field): zero response bytes are emitted in that case. A
// malformed body still yields a response, since a parse failure can never
// be distinguished from "was this a notification".
func (rt *Router) Handle(ctx context.Context, body []byte) []byte {
	req, err := protocol.ParseRequest(body)
	if err != nil {
		resp := protocol.NewErrorResponse(nil, protocol.CodeParseError, fmt.Sprintf("Parse error: %v", err), nil)
		raw, _ := resp.Marshal()
		return raw
	}

	if req.JSONRPC == "" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		resp := protocol.NewErrorResponse(*req.ID, protocol.CodeInvalidRequest, "Invalid request: missing 'method'", nil)
		raw, _ := resp.Marshal()
		return raw
	}

	result, rpcErr := rt.dispatch(ctx, req.Method, req.Params)

	if req.IsNotification() {
		// Validated above; no response bytes are emitted for notifications
		// even on a dispatch-time failure.
		return nil
	}

	if rpcErr != nil {
		resp := protocol.NewErrorResponse(*req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		raw, _ := resp.Marshal()
		return raw
	}

	resp, err := protocol.NewResultResponse(*req.ID, result)
	if err != nil {
		resp = protocol.NewErrorResponse(*req.ID, protocol.CodeInternalError, fmt.Sprintf("failed to serialize result: %v", err), nil)
	}
	raw, _ := resp.Marshal()
	return raw
}

// rpcError is the router's internal error carrier before it's rendered
// into protocol.ErrorObject.
type rpcError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func newRPCError(code int, message string) *rpcError {
	return &rpcError{Code: code, Message: message}
}

func (rt *Router) dispatch(ctx context.Context, method string, params json.RawMessage) (any, *rpcError) {
	switch method {
	case "initialize":
		return rt.handleInitialize(), nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return rt.handleToolsList(), nil
	case "tools/call":
		return rt.handleToolsCall(ctx, params)
	case "resources/list":
		return rt.handleResourcesList(), nil
	case "resources/templates/list":
		return rt.handleResourceTemplatesList(), nil
	case "resources/read":
		return rt.handleResourcesRead(ctx, params)
	case "prompts/list":
		return rt.handlePromptsList(), nil
	case "prompts/get":
		return rt.handlePromptsGet(ctx, params)
	case "logging/setLevel":
		return rt.handleSetLevel(params)
	default:
		return nil, newRPCError(protocol.CodeMethodNotFound, fmt.Sprintf("Unknown method: %s", method))
	}
}

func (rt *Router) handleInitialize() protocol.InitializeResult {
	return protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities: protocol.Capabilities{
			Tools:     map[string]any{},
			Resources: map[string]any{},
			Prompts:   map[string]any{},
		},
		ServerInfo: protocol.ServerInfo{Name: rt.Info.Name, Version: rt.Info.Version},
	}
}

type setLevelParams struct {
	Level string `json:"level"`
}

func (rt *Router) handleSetLevel(params json.RawMessage) (any, *rpcError) {
	var p setLevelParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, newRPCError(protocol.CodeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
		}
	}
	if rt.SetVerboseLogging != nil {
		verbose := p.Level == "debug" || p.Level == "trace" || p.Level == "verbose"
		rt.SetVerboseLogging(verbose)
	}
	logger.Infof("logging/setLevel: level=%s", p.Level)
	return map[string]any{}, nil
}

func (rt *Router) handleToolsList() protocol.ToolsListResult {
	descs := rt.Registries.Tools.List()
	defs := make([]protocol.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, d.Definition())
	}
	return protocol.ToolsListResult{Tools: defs}
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (rt *Router) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var p callToolParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, newRPCError(protocol.CodeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
		}
	}
	if p.Name == "" {
		return nil, newRPCError(protocol.CodeInvalidParams, "Missing 'name' in params")
	}

	desc, ok := rt.Registries.Tools.Lookup(p.Name)
	if !ok {
		return nil, newRPCError(protocol.CodeMethodNotFound, fmt.Sprintf("Unknown tool: %s", p.Name))
	}

	result, err := desc.Invoke(ctx, p.Arguments)
	if err != nil {
		var argErr *registry.ArgumentError
		if errors.As(err, &argErr) {
			return nil, newRPCError(protocol.CodeInvalidParams, fmt.Sprintf("Invalid params: %v", argErr))
		}
		var protoErr *registry.ProtocolError
		if errors.As(err, &protoErr) {
			return errorToolResult(protoErr.Message), nil
		}
		return errorToolResult(err.Error()), nil
	}
	return toCallToolResult(result), nil
}

// errorToolResult carries a tool-level failure in-band as isError:true
// content rather than an RPC error: a tool that ran and failed is not the
// same as a malformed call.
func errorToolResult(message string) protocol.CallToolResult {
	return protocol.CallToolResult{
		Content: []protocol.Content{{Type: "text", Text: message}},
		IsError: true,
	}
}

// toCallToolResult adapts a tool handler's return value into the wire
// shape. Handlers may already return the wire type directly, a raw content
// slice, a plain string (wrapped as a single text block), or any other
// JSON-marshalable value (rendered as a text block holding its JSON form).
func toCallToolResult(result any) protocol.CallToolResult {
	switch v := result.(type) {
	case protocol.CallToolResult:
		return v
	case *protocol.CallToolResult:
		return *v
	case []protocol.Content:
		return protocol.CallToolResult{Content: v}
	case string:
		return protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: v}}}
	case nil:
		return protocol.CallToolResult{Content: []protocol.Content{}}
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return errorToolResult(fmt.Sprintf("failed to serialize tool result: %v", err))
		}
		return protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: string(raw)}}}
	}
}

func (rt *Router) handleResourcesList() protocol.ResourcesListResult {
	descs := rt.Registries.Resources.ListStatic()
	defs := make([]protocol.ResourceDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, protocol.ResourceDefinition{URI: d.URI, Description: d.Description, MimeType: d.MimeType})
	}
	return protocol.ResourcesListResult{Resources: defs}
}

func (rt *Router) handleResourceTemplatesList() protocol.ResourceTemplatesListResult {
	descs := rt.Registries.Resources.ListTemplates()
	defs := make([]protocol.ResourceTemplateDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, protocol.ResourceTemplateDefinition{URITemplate: d.URI, Description: d.Description, MimeType: d.MimeType})
	}
	return protocol.ResourceTemplatesListResult{ResourceTemplates: defs}
}

type resourcesReadParams struct {
	URI string `json:"uri"`
}

func (rt *Router) handleResourcesRead(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var p resourcesReadParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, newRPCError(protocol.CodeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
		}
	}
	if p.URI == "" {
		return nil, newRPCError(protocol.CodeInvalidParams, "Missing 'uri' in params")
	}

	desc, values, ok := rt.Registries.Resources.Resolve(p.URI)
	if !ok {
		return nil, newRPCError(protocol.CodeMethodNotFound, fmt.Sprintf("Unknown resource: %s", p.URI))
	}

	result, err := desc.Invoke(ctx, values)
	if err != nil {
		var protoErr *registry.ProtocolError
		if errors.As(err, &protoErr) {
			return nil, newRPCError(protoErr.Code, protoErr.Message)
		}
		return nil, newRPCError(protocol.CodeInternalError, fmt.Sprintf("resource read failed: %v", err))
	}
	return toResourcesReadResult(desc, p.URI, result), nil
}

// toResourcesReadResult adapts a resource handler's return value into the
// wire shape, same conventions as toCallToolResult but for resources/read:
// resources and prompts surface handler failure as an RPC error rather than
// in-band content, since there is no "partial read succeeded" concept here.
func toResourcesReadResult(d *registry.ResourceDescriptor, uri string, result any) protocol.ResourcesReadResult {
	switch v := result.(type) {
	case protocol.ResourcesReadResult:
		return v
	case []protocol.ResourceContent:
		return protocol.ResourcesReadResult{Contents: v}
	case protocol.ResourceContent:
		return protocol.ResourcesReadResult{Contents: []protocol.ResourceContent{v}}
	case string:
		return protocol.ResourcesReadResult{Contents: []protocol.ResourceContent{{URI: uri, MimeType: d.MimeType, Text: v}}}
	default:
		text, err := json.Marshal(v)
		if err != nil {
			return protocol.ResourcesReadResult{Contents: []protocol.ResourceContent{{URI: uri, MimeType: d.MimeType, Text: fmt.Sprintf("%v", v)}}}
		}
		return protocol.ResourcesReadResult{Contents: []protocol.ResourceContent{{URI: uri, MimeType: d.MimeType, Text: string(text)}}}
	}
}

func (rt *Router) handlePromptsList() protocol.PromptsListResult {
	descs := rt.Registries.Prompts.List()
	defs := make([]protocol.PromptDefinition, 0, len(descs))
	for _, d := range descs {
		args := make([]protocol.PromptArgumentDefinition, 0, len(d.Args))
		for _, a := range d.Args {
			args = append(args, protocol.PromptArgumentDefinition{Name: a.Name, Description: a.Description, Required: a.Required})
		}
		defs = append(defs, protocol.PromptDefinition{Name: d.Name, Description: d.Description, Arguments: args})
	}
	return protocol.PromptsListResult{Prompts: defs}
}

type promptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (rt *Router) handlePromptsGet(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var p promptsGetParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, newRPCError(protocol.CodeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
		}
	}
	if p.Name == "" {
		return nil, newRPCError(protocol.CodeInvalidParams, "Missing 'name' in params")
	}

	desc, ok := rt.Registries.Prompts.Lookup(p.Name)
	if !ok {
		return nil, newRPCError(protocol.CodeMethodNotFound, fmt.Sprintf("Unknown prompt: %s", p.Name))
	}

	result, err := desc.Invoke(ctx, p.Arguments)
	if err != nil {
		var argErr *registry.ArgumentError
		if errors.As(err, &argErr) {
			return nil, newRPCError(protocol.CodeInvalidParams, fmt.Sprintf("Invalid params: %v", argErr))
		}
		var protoErr *registry.ProtocolError
		if errors.As(err, &protoErr) {
			return nil, newRPCError(protoErr.Code, protoErr.Message)
		}
		return nil, newRPCError(protocol.CodeInternalError, fmt.Sprintf("prompt generation failed: %v", err))
	}
	return toPromptGetResult(result), nil
}

func toPromptGetResult(result any) protocol.PromptGetResult {
	switch v := result.(type) {
	case protocol.PromptGetResult:
		return v
	case []protocol.PromptMessage:
		return protocol.PromptGetResult{Messages: v}
	case string:
		return protocol.PromptGetResult{Messages: []protocol.PromptMessage{{Role: "user", Content: protocol.Content{Type: "text", Text: v}}}}
	default:
		text, err := json.Marshal(v)
		if err != nil {
			return protocol.PromptGetResult{Messages: []protocol.PromptMessage{{Role: "user", Content: protocol.Content{Type: "text", Text: fmt.Sprintf("%v", v)}}}}
		}
		return protocol.PromptGetResult{Messages: []protocol.PromptMessage{{Role: "user", Content: protocol.Content{Type: "text", Text: string(text)}}}}
	}
}
