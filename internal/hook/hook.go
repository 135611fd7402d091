// Package hook is the request-interception pipeline: every inbound
// request is canonicalized, sent to the inspection engine, and the
// engine's verdict is enforced before the request completes.
//
// Control flow per request is strictly linear and synchronous:
// Canonicalize → Serialize → Invoke → Interpret → (Apply) → Log.
// Every engine-side failure is fail-open: the request proceeds as if
// inspection had not run, with diagnostics visible only in operator logs.
package hook

import (
	"context"
	"fmt"

	"github.com/curiefense/curieproxy-go/internal/core/domain"
	"github.com/curiefense/curieproxy-go/internal/core/ports"
	"github.com/curiefense/curieproxy-go/internal/reqmap"
)

// Pipeline binds the interception stages to their collaborators. One
// Pipeline serves all requests; all per-request state lives in the
// RequestMap and the runtime handle.
type Pipeline struct {
	inspector  ports.Inspector
	capability ports.Capability
	accessLog  ports.AccessLogger
}

// New assembles the pipeline.
func New(inspector ports.Inspector, capability ports.Capability, accessLog ports.AccessLogger) *Pipeline {
	return &Pipeline{inspector: inspector, capability: capability, accessLog: accessLog}
}

// Handle runs the pipeline for one request. raw and h are the read and
// write sides of the same per-request runtime handle. The access log is
// written exactly once, whichever branch is taken. The returned Outcome
// is what was enforced; an access-log write failure is the only error
// returned, left to the surrounding runtime's fault handling.
func (p *Pipeline) Handle(ctx context.Context, raw ports.RawRequest, h domain.Handle) (domain.Outcome, error) {
	rmap := reqmap.Canonicalize(raw)
	rmap.AttachHandle(h)
	out := domain.PassOutcome()

	payload, err := reqmap.Serialize(rmap)
	if err != nil {
		// Unserializable canonical values are a programming error; the
		// request still proceeds and gets logged.
		h.LogError(err.Error())
		return out, p.accessLog.Record(ctx, rmap, out)
	}

	verdictDoc, diags := p.inspector.Inspect(ctx, payload, p.capability)
	for _, d := range diags {
		h.LogError(fmt.Sprintf("curiefense.inspect_request_map error %s", d))
	}

	if len(verdictDoc) > 0 {
		h.LogDebug("decision " + string(verdictDoc))

		v, decision, perr := domain.ParseVerdict(verdictDoc)
		if perr != nil {
			// Engine contract violation; fall back to pass with the
			// original map.
			h.LogError(fmt.Sprintf("invalid verdict from engine: %v", perr))
		} else {
			// The engine is authoritative once it has run: its copy of
			// the request map replaces ours regardless of the action.
			// The copy arrives without runtime capabilities, so the
			// handle is reattached.
			rmap = v.RequestMap
			rmap.AttachHandle(h)
			if k := decision.Kind(); k != "" {
				out.Action = k
			}

			if cr, ok := decision.IsCustomResponse(); ok {
				h.SendCustomResponse(cr.Status, cr.Headers, cr.Body)
				out.Status = cr.Status
			}
		}
	}

	if err := p.accessLog.Record(ctx, rmap, out); err != nil {
		return out, fmt.Errorf("access log: %w", err)
	}
	return out, nil
}
