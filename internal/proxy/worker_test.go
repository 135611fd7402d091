package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/curiefense/curieproxy-go/internal/core/domain"
	"github.com/curiefense/curieproxy-go/internal/core/ports"
	"github.com/curiefense/curieproxy-go/internal/hook"
	"github.com/curiefense/curieproxy-go/internal/server"
)

type stubInspector struct {
	verdict []byte
	diags   []string
}

func (s *stubInspector) Inspect(ctx context.Context, payload []byte, capability ports.Capability) ([]byte, []string) {
	return s.verdict, s.diags
}

type countLog struct {
	calls    int
	outcomes []domain.Outcome
}

func (c *countLog) Record(ctx context.Context, m *domain.RequestMap, out domain.Outcome) error {
	c.calls++
	c.outcomes = append(c.outcomes, out)
	return nil
}

func newWorker(t *testing.T, insp ports.Inspector, logs ports.AccessLogger, upstream string) *Worker {
	t.Helper()
	u, err := url.Parse(upstream)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(hook.New(insp, nil, logs), u, logger, nil)
}

func TestWorker_ForwardsOnEngineFailure(t *testing.T) {
	var upstreamHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
		w.Write([]byte("upstream ok"))
	}))
	defer upstream.Close()

	logs := &countLog{}
	wk := newWorker(t, &stubInspector{diags: []string{"engine down"}}, logs, upstream.URL)

	w := httptest.NewRecorder()
	wk.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))

	if upstreamHits != 1 {
		t.Errorf("expected request proxied upstream, hits = %d", upstreamHits)
	}
	if w.Body.String() != "upstream ok" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
	if logs.calls != 1 {
		t.Errorf("expected exactly 1 access-log call, got %d", logs.calls)
	}
}

func TestWorker_CustomResponseBypassesUpstream(t *testing.T) {
	var upstreamHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
	}))
	defer upstream.Close()

	verdict := []byte(`{
		"action": "custom_response",
		"response": {"status": 403, "headers": {"x-reason": "acl"}, "body": "blocked"},
		"request_map": {"headers":{},"cookies":{},"args":{},"attrs":{},"geo":{}}
	}`)
	logs := &countLog{}
	wk := newWorker(t, &stubInspector{verdict: verdict}, logs, upstream.URL)

	w := httptest.NewRecorder()
	wk.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/admin", nil))

	if upstreamHits != 0 {
		t.Errorf("upstream must not be called, hits = %d", upstreamHits)
	}
	if w.Code != 403 || w.Body.String() != "blocked" {
		t.Errorf("unexpected response: %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("x-reason") != "acl" {
		t.Errorf("unexpected headers: %v", w.Header())
	}
	if logs.calls != 1 {
		t.Errorf("access log must still run once, got %d", logs.calls)
	}
	if logs.outcomes[0].Action != domain.ActionCustomResponse || logs.outcomes[0].Status != 403 {
		t.Errorf("unexpected outcome: %+v", logs.outcomes[0])
	}
}

func TestWorker_ActionAppearsInRequestLog(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	verdict := []byte(`{
		"action": "custom_response",
		"response": {"status": 403, "headers": {}, "body": "blocked"},
		"request_map": {"headers":{},"cookies":{},"args":{},"attrs":{},"geo":{}}
	}`)
	wk := newWorker(t, &stubInspector{verdict: verdict}, &countLog{}, upstream.URL)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := server.LoggingMiddleware(logger)(wk)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/admin", nil))

	line := buf.String()
	for _, want := range []string{`"action":"custom_response"`, `"response_status":"403"`} {
		if !strings.Contains(line, want) {
			t.Errorf("request log missing %q:\n%s", want, line)
		}
	}
}

func TestWorker_PassVerdictForwards(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	verdict := []byte(`{
		"action": "pass",
		"request_map": {"headers":{},"cookies":{},"args":{},"attrs":{},"geo":{}}
	}`)
	logs := &countLog{}
	wk := newWorker(t, &stubInspector{verdict: verdict}, logs, upstream.URL)

	w := httptest.NewRecorder()
	wk.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))

	if w.Body.String() != "ok" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
	if logs.calls != 1 {
		t.Errorf("expected 1 access-log call, got %d", logs.calls)
	}
}
