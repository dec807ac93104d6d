package policy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type mockEvaluator struct {
	raw   json.RawMessage
	err   error
	calls int
}

func (m *mockEvaluator) Evaluate(ctx context.Context, sub Subject) (json.RawMessage, error) {
	m.calls++
	return m.raw, m.err
}

func subject() *Subject {
	return &Subject{ToolName: "send_message", ToolInput: json.RawMessage(`{"recipient":"x@evil.com"}`)}
}

func TestDecideNilSubjectAllows(t *testing.T) {
	eval := &mockEvaluator{err: errors.New("must not be called")}
	gate := NewGate(eval, FailClosed)

	out := gate.Decide(context.Background(), nil)

	if out.Permission != PermissionAllow {
		t.Errorf("permission = %q, want allow", out.Permission)
	}
	if eval.calls != 0 {
		t.Errorf("evaluator called %d times for nil subject", eval.calls)
	}
}

func TestDecideAllow(t *testing.T) {
	eval := &mockEvaluator{raw: json.RawMessage(`{"hookSpecificOutput":{"permissionDecision":"allow"}}`)}
	gate := NewGate(eval, FailClosed)

	out := gate.Decide(context.Background(), subject())

	if out.Permission != PermissionAllow {
		t.Errorf("permission = %q, want allow", out.Permission)
	}
}

func TestDecideDenyWithReason(t *testing.T) {
	eval := &mockEvaluator{raw: json.RawMessage(
		`{"hookSpecificOutput":{"permissionDecision":"deny","permissionDecisionReason":"recipient not allowed"}}`)}
	gate := NewGate(eval, FailOpen)

	out := gate.Decide(context.Background(), subject())

	if out.Permission != PermissionDeny {
		t.Fatalf("permission = %q, want deny", out.Permission)
	}
	if out.Reason != "recipient not allowed" {
		t.Errorf("reason = %q", out.Reason)
	}
}

func TestDecideDefaultsToDeny(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty object", `{}`},
		{"missing permissionDecision", `{"hookSpecificOutput":{}}`},
		{"unexpected decision value", `{"hookSpecificOutput":{"permissionDecision":"maybe"}}`},
		{"non-object decision", `"allow"`},
		{"null decision", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := &mockEvaluator{raw: json.RawMessage(tt.raw)}
			gate := NewGate(eval, FailOpen)

			out := gate.Decide(context.Background(), subject())

			if out.Permission != PermissionDeny {
				t.Fatalf("permission = %q, want deny", out.Permission)
			}
			if out.Reason != defaultDenyReason {
				t.Errorf("reason = %q, want default", out.Reason)
			}
		})
	}
}

func TestDecideEvaluatorFailure(t *testing.T) {
	evalErr := &EvalError{Strategy: "cli", Detail: "spawn opa", Err: errors.New("not found")}

	t.Run("fail open allows", func(t *testing.T) {
		gate := NewGate(&mockEvaluator{err: evalErr}, FailOpen)
		out := gate.Decide(context.Background(), subject())
		if out.Permission != PermissionAllow {
			t.Errorf("permission = %q, want allow", out.Permission)
		}
	})

	t.Run("fail closed denies", func(t *testing.T) {
		gate := NewGate(&mockEvaluator{err: evalErr}, FailClosed)
		out := gate.Decide(context.Background(), subject())
		if out.Permission != PermissionDeny {
			t.Fatalf("permission = %q, want deny", out.Permission)
		}
		if out.Reason == "" {
			t.Error("expected an evaluation-error reason")
		}
	})
}

func TestDecideIdempotent(t *testing.T) {
	eval := &mockEvaluator{raw: json.RawMessage(`{"hookSpecificOutput":{"permissionDecision":"allow"}}`)}
	gate := NewGate(eval, FailClosed)

	first := gate.Decide(context.Background(), subject())
	second := gate.Decide(context.Background(), subject())

	if first != second {
		t.Errorf("outcomes differ: %+v then %+v", first, second)
	}
}
