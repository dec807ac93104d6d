package mcp

import "encoding/json"

// defaultMethods is the known MCP method set. Unrecognized methods still
// classify as protocol traffic when the body carries result or error, so
// responses to calls this proxy never saw are not misclassified.
var defaultMethods = []string{
	"initialize",
	"initialized",
	"ping",
	"notifications/initialized",
	"notifications/cancelled",
	"notifications/progress",
	"notifications/message",
	"notifications/resources/updated",
	"notifications/resources/list_changed",
	"notifications/tools/list_changed",
	"notifications/prompts/list_changed",
	"resources/list",
	"resources/read",
	"resources/subscribe",
	"resources/unsubscribe",
	"tools/list",
	"tools/call",
	"prompts/list",
	"prompts/get",
	"logging/setLevel",
	"sampling/createMessage",
	"completion/complete",
	"roots/list",
}

// Classifier decides whether a raw HTTP body carries MCP JSON-RPC traffic.
// It is stateless after construction and safe for concurrent use.
type Classifier struct {
	methods map[string]struct{}
}

// NewClassifier builds a classifier over the default method set plus any
// extra method names, so newer protocol revisions can be admitted without a
// rebuild.
func NewClassifier(extra ...string) *Classifier {
	methods := make(map[string]struct{}, len(defaultMethods)+len(extra))
	for _, m := range defaultMethods {
		methods[m] = struct{}{}
	}
	for _, m := range extra {
		if m != "" {
			methods[m] = struct{}{}
		}
	}
	return &Classifier{methods: methods}
}

// IsProtocolTraffic reports whether content looks like an MCP JSON-RPC
// message. A body that fails to parse is evidence of non-protocol traffic,
// never an error.
func (c *Classifier) IsProtocolTraffic(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	var body any
	if err := json.Unmarshal(content, &body); err != nil {
		return false
	}

	switch v := body.(type) {
	case map[string]any:
		return c.isProtocolObject(v)
	case []any:
		// Batched form: only the first element is inspected.
		if len(v) == 0 {
			return false
		}
		first, ok := v[0].(map[string]any)
		return ok && first["jsonrpc"] == Version
	default:
		return false
	}
}

func (c *Classifier) isProtocolObject(obj map[string]any) bool {
	if obj["jsonrpc"] != Version {
		return false
	}

	if method, ok := obj["method"].(string); ok {
		if _, known := c.methods[method]; known {
			return true
		}
	}

	_, hasResult := obj["result"]
	_, hasError := obj["error"]
	return hasResult || hasError
}
