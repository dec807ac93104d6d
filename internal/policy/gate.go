package policy

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// FailMode governs what evaluator failures mean: open keeps traffic moving
// when the engine is down, closed refuses to be silently bypassed.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

const defaultDenyReason = "Policy violation: tool call denied by policy"

// Gate interprets raw decisions and evaluator failures into outcomes. It
// never returns an error: every input resolves to allow or deny.
type Gate struct {
	evaluator Evaluator
	failMode  FailMode
}

func NewGate(evaluator Evaluator, failMode FailMode) *Gate {
	return &Gate{evaluator: evaluator, failMode: failMode}
}

// Decide gates a subject. A nil subject means the message is not a tool
// invocation and is allowed unconditionally.
func (g *Gate) Decide(ctx context.Context, sub *Subject) Outcome {
	if sub == nil {
		return Outcome{Permission: PermissionAllow}
	}

	raw, err := g.evaluator.Evaluate(ctx, *sub)
	if err != nil {
		if g.failMode == FailOpen {
			log.Warn().Err(err).Str("tool", sub.ToolName).
				Msg("policy evaluation failed, failing open")
			return Outcome{Permission: PermissionAllow}
		}
		return Outcome{
			Permission: PermissionDeny,
			Reason:     "Policy evaluation failed: " + err.Error(),
		}
	}

	return interpret(raw)
}

// interpret reads the engine's decision document. Anything other than an
// explicit allow, including missing members, denies.
func interpret(raw json.RawMessage) Outcome {
	var decision rawDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return Outcome{Permission: PermissionDeny, Reason: defaultDenyReason}
	}

	if decision.HookSpecificOutput.PermissionDecision == "allow" {
		return Outcome{Permission: PermissionAllow}
	}

	reason := decision.HookSpecificOutput.PermissionDecisionReason
	if reason == "" {
		reason = defaultDenyReason
	}
	return Outcome{Permission: PermissionDeny, Reason: reason}
}
