// Package domain defines the canonical request representation and the
// inspection verdict types exchanged with the inspection engine.
package domain

// Attribute keys populated by the canonicalizer under RequestMap.Attrs.
const (
	AttrMethod    = "method"
	AttrPath      = "path"
	AttrQuery     = "query"
	AttrURI       = "uri"
	AttrAuthority = "authority"
	AttrIP        = "ip"
	AttrRequestID = "request_id"
)

// RequestMap is the canonical per-request record. Exactly one exists per
// in-flight request. The five mapping fields are the only thing the
// inspection engine ever sees; the runtime handle is a non-owned
// association and is never serialized.
type RequestMap struct {
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`
	Args    map[string]string `json:"args"`
	Attrs   map[string]any    `json:"attrs"`
	Geo     map[string]string `json:"geo"`

	handle Handle
}

// Handle is the per-request proxy-runtime capability carried alongside a
// RequestMap. It is defined here (rather than importing the runtime
// package) so the engine-replaced copy can be reattached without a cycle.
type Handle interface {
	// LogError emits an operator-visible error-level log event.
	LogError(msg string)
	// LogDebug emits a debug-level log event.
	LogDebug(msg string)
	// SendCustomResponse instructs the runtime to answer the client with
	// the given response instead of the normal upstream flow.
	SendCustomResponse(status int, headers map[string]string, body string)
	// Responded reports whether a custom response has been emitted.
	Responded() bool
}

// NewRequestMap returns an empty RequestMap with all mappings allocated.
func NewRequestMap() *RequestMap {
	return &RequestMap{
		Headers: map[string]string{},
		Cookies: map[string]string{},
		Args:    map[string]string{},
		Attrs:   map[string]any{},
		Geo:     map[string]string{},
	}
}

// AttachHandle associates the runtime handle with this map. The engine's
// request_map copy arrives without one, so the interpreter reattaches the
// current request's handle after replacement.
func (m *RequestMap) AttachHandle(h Handle) { m.handle = h }

// Handle returns the attached runtime handle, or nil if none is attached.
func (m *RequestMap) Handle() Handle { return m.handle }

// RequestID returns the proxy-assigned request id from attrs, if present.
func (m *RequestMap) RequestID() string {
	if id, ok := m.Attrs[AttrRequestID].(string); ok {
		return id
	}
	return ""
}
