package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestForwarderPreservesRequest(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotQuery  string
		gotHeader http.Header
		gotBody   []byte
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("pong"))
	}))
	defer upstream.Close()

	f, err := NewForwarder(upstream.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("create forwarder: %v", err)
	}

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp/v1?session=abc", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Custom", "kept")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.Forward(context.Background(), req, body)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
	if gotPath != "/mcp/v1" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "session=abc" {
		t.Errorf("query = %s", gotQuery)
	}
	if string(gotBody) != string(body) {
		t.Errorf("body = %s, want %s", gotBody, body)
	}
	if gotHeader.Get("X-Custom") != "kept" {
		t.Error("custom header dropped")
	}
	if gotHeader.Get("Connection") != "" {
		t.Error("hop-by-hop header forwarded")
	}

	if resp.Status != http.StatusAccepted {
		t.Errorf("status = %d", resp.Status)
	}
	if string(resp.Body) != "pong" {
		t.Errorf("response body = %s", resp.Body)
	}
	if resp.Header.Get("X-Upstream") != "yes" {
		t.Error("upstream header dropped")
	}
}

func TestForwarderInvalidUpstream(t *testing.T) {
	if _, err := NewForwarder("not-a-url", time.Second); err == nil {
		t.Error("expected error for relative upstream")
	}
	if _, err := NewForwarder("://broken", time.Second); err == nil {
		t.Error("expected error for malformed upstream")
	}
}

func TestForwarderTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer upstream.Close()

	f, err := NewForwarder(upstream.URL, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("create forwarder: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := f.Forward(context.Background(), req, nil); err == nil {
		t.Error("expected timeout error")
	}
}
