// Package reqmap builds the canonical RequestMap from a raw proxy request
// and renders the payload sent to the inspection engine.
package reqmap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/curiefense/curieproxy-go/internal/core/domain"
	"github.com/curiefense/curieproxy-go/internal/core/ports"
)

// Canonicalize reads the raw request handle into a RequestMap without
// mutating the underlying connection. Header names are lowercased;
// duplicate header or argument values are joined with a single space.
func Canonicalize(raw ports.RawRequest) *domain.RequestMap {
	m := domain.NewRequestMap()

	raw.VisitHeaders(func(name, value string) {
		addField(m.Headers, strings.ToLower(name), value)
	})
	raw.VisitCookies(func(name, value string) {
		addField(m.Cookies, name, value)
	})
	raw.VisitArgs(func(name, value string) {
		addField(m.Args, name, value)
	})

	m.Attrs[domain.AttrMethod] = raw.Method()
	m.Attrs[domain.AttrPath] = raw.Path()
	m.Attrs[domain.AttrQuery] = raw.RawQuery()
	m.Attrs[domain.AttrURI] = raw.URI()
	m.Attrs[domain.AttrAuthority] = raw.Authority()
	m.Attrs[domain.AttrIP] = raw.RemoteIP()
	if id := raw.RequestID(); id != "" {
		m.Attrs[domain.AttrRequestID] = id
	}

	for k, v := range raw.Geo() {
		m.Geo[k] = v
	}

	return m
}

// addField applies the duplicate policy: later values for the same key
// are appended after a single space.
func addField(dst map[string]string, name, value string) {
	if prev, ok := dst[name]; ok {
		dst[name] = prev + " " + value
		return
	}
	dst[name] = value
}

// Serialize renders the engine payload: a JSON document with exactly the
// keys headers, cookies, attrs, args and geo. Output is deterministic for
// a given map (object keys are emitted sorted).
func Serialize(m *domain.RequestMap) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		// Attrs values are produced by the canonicalizer and the engine;
		// anything unmarshalable is a programming error upstream.
		return nil, fmt.Errorf("serialize request map: %w", err)
	}
	return b, nil
}
