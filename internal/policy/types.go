package policy

import (
	"context"
	"encoding/json"
	"fmt"
)

// Subject is the record submitted to the policy engine for a tool call.
type Subject struct {
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
}

// Permission is the gate's verdict on a subject.
type Permission string

const (
	PermissionAllow Permission = "allow"
	PermissionDeny  Permission = "deny"
)

// Outcome is the final decision for an exchange. Reason is only meaningful
// on deny.
type Outcome struct {
	Permission Permission
	Reason     string
}

// Evaluator turns a subject into the engine's raw decision document. Both
// strategies share this contract: same success type, same error type, same
// timeout budget.
type Evaluator interface {
	Evaluate(ctx context.Context, sub Subject) (json.RawMessage, error)
}

// EvalError is any failure to obtain a decision from the engine: missing
// binary, non-zero exit, timeout, transport failure, or unparseable output.
// The gate converts it to an outcome per the configured fail mode.
type EvalError struct {
	Strategy string
	Detail   string
	Err      error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s evaluation: %s: %v", e.Strategy, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s evaluation: %s", e.Strategy, e.Detail)
}

func (e *EvalError) Unwrap() error { return e.Err }

// rawDecision is the document shape expected from either strategy. Missing
// members default to deny when interpreted.
type rawDecision struct {
	HookSpecificOutput struct {
		PermissionDecision       string `json:"permissionDecision"`
		PermissionDecisionReason string `json:"permissionDecisionReason"`
	} `json:"hookSpecificOutput"`
}
