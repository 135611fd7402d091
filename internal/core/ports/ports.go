// Package ports defines the interfaces between the interception pipeline
// and its external collaborators: the inspection engine, the access-log
// subsystem, and the proxy runtime's per-request read surface.
package ports

import (
	"context"

	"github.com/curiefense/curieproxy-go/internal/core/domain"
)

// Capability is the opaque verification token the engine needs to consult
// its challenge oracle. The pipeline never interprets it.
type Capability interface {
	Token() string
}

// Inspector is the inspection-engine call contract. It is invoked exactly
// once per request. Exactly one of verdict and diags is non-nil on
// return: a verdict document on success, or an ordered list of diagnostic
// strings on failure. A failed call never aborts the request.
type Inspector interface {
	Inspect(ctx context.Context, payload []byte, capability Capability) (verdict []byte, diags []string)
}

// AccessLogger receives the final RequestMap for a request, exactly once,
// whether or not a custom response was applied, together with the
// enforced outcome.
type AccessLogger interface {
	Record(ctx context.Context, m *domain.RequestMap, out domain.Outcome) error
}

// RawRequest is the read surface of the proxy runtime's per-request
// handle. Reading it must not mutate the underlying connection.
type RawRequest interface {
	Method() string
	Path() string
	RawQuery() string
	URI() string
	Authority() string
	RemoteIP() string
	RequestID() string

	// VisitHeaders calls fn for every header line. Names are reported as
	// received; canonicalization is the caller's concern.
	VisitHeaders(fn func(name, value string))
	VisitCookies(fn func(name, value string))
	// VisitArgs reports query and body arguments.
	VisitArgs(fn func(name, value string))

	// Geo returns best-effort geolocation attributes for the remote
	// address. An empty map is not an error.
	Geo() map[string]string
}
