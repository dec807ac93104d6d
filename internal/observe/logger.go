package observe

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// bodyPreviewLimit bounds how much of a non-JSON body makes it into a log
// line.
const bodyPreviewLimit = 500

// Logger is the zerolog-backed sink.
type Logger struct{}

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) Request(rec RequestRecord) {
	evt := log.Info().
		Uint64("request_number", rec.Number).
		Str("exchange", rec.Exchange).
		Str("method", rec.Method).
		Str("url", rec.URL).
		Str("headers", flattenHeaders(rec.Headers))
	addBody(evt, rec.Body)
	evt.Msg("mcp request")
}

func (l *Logger) Response(rec ResponseRecord) {
	evt := log.Info().
		Str("exchange", rec.Exchange).
		Int("status", rec.Status).
		Str("headers", flattenHeaders(rec.Headers))
	addBody(evt, rec.Body)
	evt.Msg("mcp response")
}

func (l *Logger) Violation(rec ViolationRecord) {
	log.Warn().
		Uint64("request_number", rec.Number).
		Str("exchange", rec.Exchange).
		Str("tool", rec.Tool).
		Str("reason", rec.Reason).
		Msg("policy violation, request blocked")
}

func addBody(evt *zerolog.Event, body []byte) {
	if len(body) == 0 {
		return
	}
	if json.Valid(body) {
		evt.RawJSON("body", body)
		return
	}
	preview := body
	if len(preview) > bodyPreviewLimit {
		preview = preview[:bodyPreviewLimit]
	}
	evt.Str("body_raw", string(preview))
}

func flattenHeaders(h http.Header) string {
	if len(h) == 0 {
		return ""
	}
	var b strings.Builder
	for name, values := range h {
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
		}
	}
	return b.String()
}
