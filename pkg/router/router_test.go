package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphost/bridge/pkg/protocol"
	"github.com/mcphost/bridge/pkg/registry"
)

type echoArgs struct {
	Message string `mcp:"message;description=text to echo;required"`
	Times   int    `mcp:"times;default=1;min=1;max=3"`
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	regs := registry.New()

	err := regs.Tools.Register("echo", func(_ context.Context, a echoArgs) (string, error) {
		out := ""
		for i := 0; i < a.Times; i++ {
			out += a.Message
		}
		return out, nil
	}, registry.RegisterOptions{Description: "echoes its input", Category: "Debug"})
	require.NoError(t, err)

	err = regs.Tools.Register("fail", func(_ context.Context, _ echoArgs) (string, error) {
		return "", registry.NewProtocolError(protocol.CodeInternalError, "boom")
	}, registry.RegisterOptions{Description: "always fails", Category: "Debug"})
	require.NoError(t, err)

	err = regs.Resources.Register("scene://active", "active scene", "text/plain",
		func(_ context.Context) (string, error) { return "MainScene", nil })
	require.NoError(t, err)

	err = regs.Resources.Register("asset://{path}", "an asset", "text/plain",
		func(_ context.Context, path string) (string, error) { return "contents of " + path, nil })
	require.NoError(t, err)

	err = regs.Prompts.Register("greet", "greets someone",
		[]*registry.PromptArgDescriptor{{Name: "who", Required: true}},
		func(_ context.Context, args map[string]string) (string, error) {
			return "hello " + args["who"], nil
		})
	require.NoError(t, err)

	regs.MarkInitialized()
	return New(regs, ServerInfo{Name: "hostsim", Version: "0.1.0"})
}

func call(t *testing.T, rt *Router, method string, params any, id any) *protocol.Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		raw = b
	}
	req := map[string]any{"jsonrpc": "2.0", "method": method, "params": raw}
	if id != nil {
		req["id"] = id
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	respBytes := rt.Handle(context.Background(), body)
	if id == nil {
		assert.Nil(t, respBytes)
		return nil
	}
	require.NotNil(t, respBytes)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(respBytes, &resp))
	return &resp
}

func TestInitializeAdvertisesEmptyCapabilities(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "initialize", map[string]any{}, 1)
	require.Nil(t, resp.Error)

	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, protocol.ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "hostsim", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
	assert.NotNil(t, result.Capabilities.Resources)
	assert.NotNil(t, result.Capabilities.Prompts)
}

func TestNotificationYieldsNoResponse(t *testing.T) {
	rt := newTestRouter(t)
	call(t, rt, "ping", nil, nil)
}

func TestIDPreservedVerbatim(t *testing.T) {
	rt := newTestRouter(t)

	resp := call(t, rt, "ping", map[string]any{}, "abc-123")
	assert.Equal(t, `"abc-123"`, string(resp.ID))

	resp = call(t, rt, "ping", map[string]any{}, 42)
	assert.Equal(t, `42`, string(resp.ID))
}

func TestToolsCallSuccess(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "tools/call", map[string]any{
		"name":      "echo",
		"arguments": map[string]any{"message": "hi", "times": 2},
	}, 1)
	require.Nil(t, resp.Error)

	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hihi", result.Content[0].Text)
}

func TestToolsCallMissingRequiredArgumentIsInvalidParams(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "tools/call", map[string]any{
		"name":      "echo",
		"arguments": map[string]any{},
	}, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidParams, resp.Error.Code)
}

func TestToolsCallHandlerFailureIsInBand(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "tools/call", map[string]any{
		"name":      "fail",
		"arguments": map[string]any{"message": "x"},
	}, 1)
	require.Nil(t, resp.Error)

	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.IsError)
	assert.Equal(t, "boom", result.Content[0].Text)
}

func TestToolsCallUnknownToolIsMethodNotFound(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "tools/call", map[string]any{"name": "nope"}, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Unknown tool: nope", resp.Error.Message)
}

func TestToolsCallMissingName(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "tools/call", map[string]any{}, 2)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "Missing 'name' in params", resp.Error.Message)
}

func TestToolsCallHandlerPanicIsInBand(t *testing.T) {
	regs := registry.New()
	require.NoError(t, regs.Tools.Register("crash", func(_ context.Context) (string, error) {
		panic("nil scene reference")
	}, registry.RegisterOptions{}))
	rt := New(regs, ServerInfo{Name: "hostsim", Version: "0.1.0"})

	resp := call(t, rt, "tools/call", map[string]any{"name": "crash"}, 1)
	require.Nil(t, resp.Error)

	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "panicked")
}

func TestResourcesReadHandlerPanicIsInternalError(t *testing.T) {
	regs := registry.New()
	require.NoError(t, regs.Resources.Register("scene://broken", "", "",
		func(_ context.Context) (string, error) { panic("nil scene reference") }))
	rt := New(regs, ServerInfo{Name: "hostsim", Version: "0.1.0"})

	resp := call(t, rt, "resources/read", map[string]any{"uri": "scene://broken"}, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInternalError, resp.Error.Code)
}

func TestResourcesReadStaticAndTemplate(t *testing.T) {
	rt := newTestRouter(t)

	resp := call(t, rt, "resources/read", map[string]any{"uri": "scene://active"}, 1)
	require.Nil(t, resp.Error)
	var result protocol.ResourcesReadResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "MainScene", result.Contents[0].Text)

	resp = call(t, rt, "resources/read", map[string]any{"uri": "asset://foo"}, 2)
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "contents of foo", result.Contents[0].Text)
}

func TestResourcesReadUnknownURI(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "resources/read", map[string]any{"uri": "nope://x"}, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
}

func TestPromptsGet(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "prompts/get", map[string]any{
		"name":      "greet",
		"arguments": map[string]string{"who": "world"},
	}, 1)
	require.Nil(t, resp.Error)

	var result protocol.PromptGetResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "hello world", result.Messages[0].Content.Text)
}

func TestPromptsGetMissingRequiredArgument(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "prompts/get", map[string]any{"name": "greet", "arguments": map[string]string{}}, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidParams, resp.Error.Code)
}

func TestUnknownMethodIsMethodNotFound(t *testing.T) {
	rt := newTestRouter(t)
	resp := call(t, rt, "nonexistent/method", map[string]any{}, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
}

func TestMalformedBodyYieldsParseErrorWithNullID(t *testing.T) {
	rt := New(registry.New(), ServerInfo{Name: "hostsim", Version: "0.1.0"})
	respBytes := rt.Handle(context.Background(), []byte("{not json"))
	require.NotNil(t, respBytes)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(respBytes, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeParseError, resp.Error.Code)
	assert.Equal(t, "null", string(resp.ID))
}

func TestLoggingSetLevelTogglesVerbosity(t *testing.T) {
	rt := newTestRouter(t)
	var gotVerbose bool
	rt.SetVerboseLogging = func(v bool) { gotVerbose = v }

	resp := call(t, rt, "logging/setLevel", map[string]any{"level": "debug"}, 1)
	require.Nil(t, resp.Error)
	assert.True(t, gotVerbose)
}
