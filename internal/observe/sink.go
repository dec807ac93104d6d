// Package observe receives the human-facing record of classified traffic
// and policy violations. The pipeline emits records; sinks decide what to
// do with them, so logging can be swapped or silenced without touching
// pipeline logic.
package observe

import "net/http"

// RequestRecord describes one classified protocol request.
type RequestRecord struct {
	Number   uint64
	Exchange string
	Method   string
	URL      string
	Headers  http.Header
	Body     []byte
}

// ResponseRecord describes the response side of a protocol exchange.
type ResponseRecord struct {
	Exchange string
	Status   int
	Headers  http.Header
	Body     []byte
}

// ViolationRecord describes a denied tool call.
type ViolationRecord struct {
	Number   uint64
	Exchange string
	Tool     string
	Reason   string
}

// Sink consumes traffic records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Request(rec RequestRecord)
	Response(rec ResponseRecord)
	Violation(rec ViolationRecord)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Request(RequestRecord)     {}
func (Nop) Response(ResponseRecord)   {}
func (Nop) Violation(ViolationRecord) {}
