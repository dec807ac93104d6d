package mcp

import "encoding/json"

// CodeInvalidRequest is the JSON-RPC error code used for denied calls.
const CodeInvalidRequest = -32600

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type denyReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   errorBody       `json:"error"`
}

// DenyBody builds the JSON-RPC error reply that substitutes for forwarding a
// denied call. A nil id serializes as null, matching a request that carried
// none.
func DenyBody(id json.RawMessage, reason string) []byte {
	body, err := json.Marshal(denyReply{
		JSONRPC: Version,
		ID:      id,
		Error:   errorBody{Code: CodeInvalidRequest, Message: reason},
	})
	if err != nil {
		// Only reachable if id is not valid JSON; fall back to a null id.
		body, _ = json.Marshal(denyReply{
			JSONRPC: Version,
			Error:   errorBody{Code: CodeInvalidRequest, Message: reason},
		})
	}
	return body
}
