package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// hopByHopHeaders must not be forwarded between hops.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder relays a request to the upstream tool server, preserving
// method, path, query, headers, and the exact body bytes.
type Forwarder struct {
	upstream *url.URL
	client   *http.Client
}

func NewForwarder(upstream string, timeout time.Duration) (*Forwarder, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", upstream)
	}

	return &Forwarder{
		upstream: u,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// UpstreamResponse is the upstream's answer, fully buffered so the caller
// can classify the body before writing it back.
type UpstreamResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (f *Forwarder) Forward(ctx context.Context, req *http.Request, body []byte) (*UpstreamResponse, error) {
	target := *f.upstream
	target.Path = singleJoin(f.upstream.Path, req.URL.Path)
	target.RawQuery = req.URL.RawQuery

	out, err := http.NewRequestWithContext(ctx, req.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	out.Header = copyHeaders(req.Header)

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &UpstreamResponse{
		Status: resp.StatusCode,
		Header: copyHeaders(resp.Header),
		Body:   respBody,
	}, nil
}

func copyHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for name, values := range src {
		dst[name] = append([]string(nil), values...)
	}
	for _, name := range hopByHopHeaders {
		dst.Del(name)
	}
	return dst
}

func singleJoin(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case path == "":
		return base
	default:
		return base + path
	}
}
