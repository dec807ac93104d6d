package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultOPABinary = "opa"

// CLIEvaluator runs the opa binary for every decision: the subject goes in
// on stdin, the raw-format query result comes back on stdout. The policy
// file is read fresh by opa on each call, so edits take effect without a
// reload step.
type CLIEvaluator struct {
	binary     string
	policyPath string
	query      string
	timeout    time.Duration
}

func NewCLIEvaluator(policyPath, query string, timeout time.Duration) *CLIEvaluator {
	return &CLIEvaluator{
		binary:     defaultOPABinary,
		policyPath: policyPath,
		query:      query,
		timeout:    timeout,
	}
}

func (e *CLIEvaluator) Evaluate(ctx context.Context, sub Subject) (json.RawMessage, error) {
	input, err := json.Marshal(sub)
	if err != nil {
		return nil, &EvalError{Strategy: "cli", Detail: "marshal subject", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// CommandContext kills the process on deadline, so a hung evaluation
	// never leaks the child or its pipes.
	cmd := exec.CommandContext(ctx, e.binary,
		"eval", "--format", "raw", "--stdin-input", "--data", e.policyPath, e.query)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, &EvalError{
			Strategy: "cli",
			Detail:   fmt.Sprintf("timed out after %s", e.timeout),
			Err:      ctx.Err(),
		}
	}
	if runErr != nil {
		detail := "spawn " + e.binary
		if _, ok := runErr.(*exec.ExitError); ok {
			detail = fmt.Sprintf("exited non-zero: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, &EvalError{Strategy: "cli", Detail: detail, Err: runErr}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, &EvalError{Strategy: "cli", Detail: "output is not valid JSON"}
	}
	return json.RawMessage(out), nil
}
