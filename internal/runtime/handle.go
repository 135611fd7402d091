// Package runtime adapts the worker's HTTP layer to the per-request
// handle the interception pipeline operates on: read access to the raw
// request, leveled log emission, and custom-response substitution.
package runtime

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"

	"github.com/curiefense/curieproxy-go/internal/core/domain"
	"github.com/curiefense/curieproxy-go/internal/core/ports"
)

// maxFormBody bounds how much of a form body is buffered for argument
// extraction. Bodies above the cap contribute no arguments and are
// proxied upstream byte for byte.
const maxFormBody = 1 << 20

// GeoResolver derives best-effort geolocation attributes for a request.
type GeoResolver interface {
	Resolve(remoteIP string, headers http.Header) map[string]string
}

// HTTPHandle is the per-request runtime handle. It is single-owner: it
// belongs to the goroutine serving the request and is carried, not
// copied, into the post-verdict RequestMap.
type HTTPHandle struct {
	w         http.ResponseWriter
	r         *http.Request
	logger    *slog.Logger
	geo       GeoResolver
	requestID string
	args      url.Values
	responded bool
}

// NewHTTPHandle wraps one request/response pair. Form bodies are buffered
// and restored so argument extraction does not consume the stream the
// upstream proxy will need.
func NewHTTPHandle(w http.ResponseWriter, r *http.Request, logger *slog.Logger, geo GeoResolver, requestID string) *HTTPHandle {
	h := &HTTPHandle{
		w:         w,
		r:         r,
		logger:    logger,
		geo:       geo,
		requestID: requestID,
		args:      url.Values{},
	}

	if q, err := url.ParseQuery(r.URL.RawQuery); err == nil {
		h.args = q
	}
	h.mergeFormArgs()

	return h
}

// mergeFormArgs folds urlencoded body parameters into the argument set.
// Whatever was read is stitched back in front of the unread remainder,
// so the upstream proxy always sees the complete body.
func (h *HTTPHandle) mergeFormArgs() {
	if h.r.Body == nil || h.r.ContentLength > maxFormBody {
		return
	}
	ct, _, err := mime.ParseMediaType(h.r.Header.Get("Content-Type"))
	if err != nil || ct != "application/x-www-form-urlencoded" {
		return
	}

	// Read one byte past the cap so an unknown-length body that exceeds
	// it is detected without being consumed.
	buffered, err := io.ReadAll(io.LimitReader(h.r.Body, maxFormBody+1))
	h.r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buffered), h.r.Body))
	if err != nil || len(buffered) > maxFormBody {
		return
	}

	form, err := url.ParseQuery(string(buffered))
	if err != nil {
		return
	}
	for name, values := range form {
		h.args[name] = append(h.args[name], values...)
	}
}

func (h *HTTPHandle) Method() string    { return h.r.Method }
func (h *HTTPHandle) Path() string      { return h.r.URL.Path }
func (h *HTTPHandle) RawQuery() string  { return h.r.URL.RawQuery }
func (h *HTTPHandle) URI() string       { return h.r.URL.RequestURI() }
func (h *HTTPHandle) Authority() string { return h.r.Host }
func (h *HTTPHandle) RequestID() string { return h.requestID }

// RemoteIP returns the peer address without its port.
func (h *HTTPHandle) RemoteIP() string {
	if host, _, err := net.SplitHostPort(h.r.RemoteAddr); err == nil {
		return host
	}
	return h.r.RemoteAddr
}

func (h *HTTPHandle) VisitHeaders(fn func(name, value string)) {
	for name, values := range h.r.Header {
		for _, v := range values {
			fn(name, v)
		}
	}
}

func (h *HTTPHandle) VisitCookies(fn func(name, value string)) {
	for _, c := range h.r.Cookies() {
		fn(c.Name, c.Value)
	}
}

func (h *HTTPHandle) VisitArgs(fn func(name, value string)) {
	for name, values := range h.args {
		for _, v := range values {
			fn(name, v)
		}
	}
}

func (h *HTTPHandle) Geo() map[string]string {
	if h.geo == nil {
		return nil
	}
	return h.geo.Resolve(h.RemoteIP(), h.r.Header)
}

// LogError emits an operator-visible error-level event tied to this
// request.
func (h *HTTPHandle) LogError(msg string) {
	h.logger.Error(msg, slog.String("request_id", h.requestID))
}

// LogDebug emits a debug-level event tied to this request.
func (h *HTTPHandle) LogDebug(msg string) {
	h.logger.Debug(msg, slog.String("request_id", h.requestID))
}

// SendCustomResponse answers the client with the engine's response in
// place of the normal upstream flow.
func (h *HTTPHandle) SendCustomResponse(status int, headers map[string]string, body string) {
	for name, value := range headers {
		h.w.Header().Set(name, value)
	}
	h.w.WriteHeader(status)
	if body != "" {
		// Write failures surface through the server's connection
		// handling, not here.
		_, _ = io.WriteString(h.w, body)
	}
	h.responded = true
}

// Responded reports whether a custom response was emitted.
func (h *HTTPHandle) Responded() bool { return h.responded }

var (
	_ ports.RawRequest = (*HTTPHandle)(nil)
	_ domain.Handle    = (*HTTPHandle)(nil)
)
