// Package proxy is the reverse-proxy worker: every inbound request runs
// through the interception hook, then either proxies to the upstream or
// stops at the engine's custom response.
package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/curiefense/curieproxy-go/internal/hook"
	"github.com/curiefense/curieproxy-go/internal/runtime"
	"github.com/curiefense/curieproxy-go/internal/server"
)

// Worker serves one listener. It is safe for concurrent use; per-request
// state lives in the runtime handle.
type Worker struct {
	pipeline *hook.Pipeline
	upstream http.Handler
	logger   *slog.Logger
	geo      runtime.GeoResolver
}

// NewWorker builds the worker for the given upstream.
func NewWorker(pipeline *hook.Pipeline, upstream *url.URL, logger *slog.Logger, geo runtime.GeoResolver) *Worker {
	rp := httputil.NewSingleHostReverseProxy(upstream)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream error",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	return &Worker{
		pipeline: pipeline,
		upstream: rp,
		logger:   logger,
		geo:      geo,
	}
}

// ServeHTTP runs the interception hook and forwards upstream unless a
// custom response was applied.
func (wk *Worker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := server.GetRequestID(r.Context())
	h := runtime.NewHTTPHandle(w, r, wk.logger, wk.geo, requestID)

	out, err := wk.pipeline.Handle(r.Context(), h, h)
	server.AddLogField(r.Context(), "action", out.Action)
	if out.Status > 0 {
		server.AddLogField(r.Context(), "response_status", strconv.Itoa(out.Status))
	}
	if err != nil {
		// Access-log write failures land here; the client response is
		// already decided at this point.
		server.AddError(r.Context(), err)
		wk.logger.Error("interception pipeline error",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}

	if h.Responded() {
		return
	}
	wk.upstream.ServeHTTP(w, r)
}
