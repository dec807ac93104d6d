package mcp

import (
	"bytes"
	"encoding/json"
)

// Version is the only JSON-RPC dialect this proxy understands.
const Version = "2.0"

// MethodToolsCall is the one method subject to policy gating.
const MethodToolsCall = "tools/call"

// Message is a single JSON-RPC 2.0 record. ID is kept raw so the original
// scalar survives round-tripping into a synthesized reply.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Parse decodes a single-object protocol message. Batched bodies and
// anything that is not a JSON object return ok=false; callers treat that as
// "nothing to gate", not a fault.
func Parse(content []byte) (*Message, bool) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, false
	}
	return &msg, true
}

// ToolCall is the name/arguments pair of a tools/call request.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ExtractToolCall pulls the tool name and arguments from a tools/call
// request. Missing params, name, or arguments default to the empty string
// and an empty object; an empty name is still a valid call for the policy to
// judge. Every other method returns ok=false.
func ExtractToolCall(msg *Message) (ToolCall, bool) {
	if msg == nil || msg.Method != MethodToolsCall {
		return ToolCall{}, false
	}

	var params callParams
	if len(msg.Params) > 0 {
		// Malformed params degrade to the defaults rather than failing.
		_ = json.Unmarshal(msg.Params, &params)
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage(`{}`)
	}

	return ToolCall{Name: params.Name, Arguments: params.Arguments}, true
}
