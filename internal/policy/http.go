package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEvaluator asks a remote OPA server for decisions. The subject is
// wrapped as {"input": subject} and the response's result member (or the
// whole body when absent) is the raw decision.
type HTTPEvaluator struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPEvaluator(url string, timeout time.Duration) *HTTPEvaluator {
	return &HTTPEvaluator{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEvaluator) Evaluate(ctx context.Context, sub Subject) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]Subject{"input": sub})
	if err != nil {
		return nil, &EvalError{Strategy: "server", Detail: "marshal subject", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &EvalError{Strategy: "server", Detail: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &EvalError{
				Strategy: "server",
				Detail:   fmt.Sprintf("timed out after %s", e.timeout),
				Err:      ctx.Err(),
			}
		}
		return nil, &EvalError{Strategy: "server", Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &EvalError{Strategy: "server", Detail: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &EvalError{
			Strategy: "server",
			Detail:   fmt.Sprintf("endpoint returned %d", resp.StatusCode),
		}
	}
	if !json.Valid(body) {
		return nil, &EvalError{Strategy: "server", Detail: "response is not valid JSON"}
	}

	// OPA's data API wraps the decision as {"result": ...}; bare decision
	// documents pass through whole.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if result, ok := envelope["result"]; ok {
			return result, nil
		}
	}
	return json.RawMessage(body), nil
}
