package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dagbolade/mcp-guard/internal/mcp"
	"github.com/dagbolade/mcp-guard/internal/observe"
	"github.com/dagbolade/mcp-guard/internal/policy"
)

// Pipeline runs every exchange through classification, gating, and either
// forwarding or a locally synthesized deny. It holds no per-exchange state
// beyond the request counter and is safe for concurrent exchanges.
type Pipeline struct {
	classifier *mcp.Classifier
	gate       *policy.Gate
	forwarder  *Forwarder
	sink       observe.Sink
	requests   atomic.Uint64
}

func NewPipeline(classifier *mcp.Classifier, gate *policy.Gate, forwarder *Forwarder, sink observe.Sink) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		gate:       gate,
		forwarder:  forwarder,
		sink:       sink,
	}
}

// RequestCount reports how many protocol requests have been classified.
func (p *Pipeline) RequestCount() uint64 {
	return p.requests.Load()
}

// Handle is the per-exchange entry point wired into the server's catch-all
// route.
func (p *Pipeline) Handle(c echo.Context) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read request body")
	}
	req.Body.Close()

	if !p.classifier.IsProtocolTraffic(body) {
		return p.passThrough(c, body)
	}

	number := p.requests.Add(1)
	exchange := uuid.New().String()

	p.sink.Request(observe.RequestRecord{
		Number:   number,
		Exchange: exchange,
		Method:   req.Method,
		URL:      req.URL.String(),
		Headers:  req.Header,
		Body:     body,
	})

	msg, parsed := mcp.Parse(body)
	subject := subjectOf(msg, parsed)

	// Evaluation runs on a fresh context: a client disconnect must not
	// cancel an in-flight policy decision, only the evaluator's own
	// timeout bounds it.
	outcome := p.gate.Decide(context.Background(), subject)

	if outcome.Permission == policy.PermissionDeny {
		return p.deny(c, msg, subject, number, exchange, outcome.Reason)
	}

	return p.forwardProtocol(c, body, exchange)
}

// subjectOf derives the decision subject for a single-object tools/call
// request. Batches, unparseable bodies, and every other method carry no
// subject and are allowed through the gate unconditionally.
func subjectOf(msg *mcp.Message, parsed bool) *policy.Subject {
	if !parsed {
		return nil
	}
	call, ok := mcp.ExtractToolCall(msg)
	if !ok {
		return nil
	}
	return &policy.Subject{ToolName: call.Name, ToolInput: call.Arguments}
}

func (p *Pipeline) deny(c echo.Context, msg *mcp.Message, sub *policy.Subject, number uint64, exchange, reason string) error {
	tool := ""
	if sub != nil {
		tool = sub.ToolName
	}
	p.sink.Violation(observe.ViolationRecord{
		Number:   number,
		Exchange: exchange,
		Tool:     tool,
		Reason:   reason,
	})

	var id json.RawMessage
	if msg != nil {
		id = msg.ID
	}

	c.Response().Header().Set("X-Request-ID", exchange)
	return c.JSONBlob(http.StatusOK, mcp.DenyBody(id, reason))
}

func (p *Pipeline) forwardProtocol(c echo.Context, body []byte, exchange string) error {
	resp, err := p.forwarder.Forward(c.Request().Context(), c.Request(), body)
	if err != nil {
		log.Error().Err(err).Str("exchange", exchange).Msg("forward failed")
		return c.String(http.StatusBadGateway, "upstream request failed")
	}

	p.sink.Response(observe.ResponseRecord{
		Exchange: exchange,
		Status:   resp.Status,
		Headers:  resp.Header,
		Body:     resp.Body,
	})

	return writeUpstream(c, resp)
}

// passThrough forwards non-protocol traffic untouched. The response is
// still classified on its own merits, covering responses whose request this
// proxy could not recognize.
func (p *Pipeline) passThrough(c echo.Context, body []byte) error {
	resp, err := p.forwarder.Forward(c.Request().Context(), c.Request(), body)
	if err != nil {
		log.Error().Err(err).Msg("forward failed")
		return c.String(http.StatusBadGateway, "upstream request failed")
	}

	if p.classifier.IsProtocolTraffic(resp.Body) {
		p.sink.Response(observe.ResponseRecord{
			Exchange: uuid.New().String(),
			Status:   resp.Status,
			Headers:  resp.Header,
			Body:     resp.Body,
		})
	}

	return writeUpstream(c, resp)
}

func writeUpstream(c echo.Context, resp *UpstreamResponse) error {
	header := c.Response().Header()
	for name, values := range resp.Header {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	c.Response().WriteHeader(resp.Status)
	_, err := c.Response().Write(resp.Body)
	return err
}
