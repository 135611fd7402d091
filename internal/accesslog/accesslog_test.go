package accesslog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/curiefense/curieproxy-go/internal/core/domain"
	"github.com/curiefense/curieproxy-go/internal/storage"
)

func sampleMap() *domain.RequestMap {
	m := domain.NewRequestMap()
	m.Headers["user-agent"] = "x"
	m.Attrs[domain.AttrMethod] = "GET"
	m.Attrs[domain.AttrPath] = "/login"
	m.Attrs[domain.AttrAuthority] = "example.com"
	m.Attrs[domain.AttrIP] = "203.0.113.7"
	m.Attrs[domain.AttrRequestID] = "req-9"
	m.Attrs["tags"] = map[string]any{"geo:fr": 1}
	return m
}

func TestSlogLogger_Record(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	out := domain.Outcome{Action: domain.ActionCustomResponse, Status: 403}
	if err := l.Record(context.Background(), sampleMap(), out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := buf.String()
	for _, want := range []string{`"msg":"access"`, `"request_id":"req-9"`, `"path":"/login"`, `"ip":"203.0.113.7"`, `"action":"custom_response"`, `"response_status":403`, "geo:fr"} {
		if !strings.Contains(line, want) {
			t.Errorf("access line missing %q: %s", want, line)
		}
	}
}

type memStore struct {
	records []*storage.AccessRecord
	err     error
}

func (s *memStore) Append(ctx context.Context, rec *storage.AccessRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memStore) Close() error { return nil }

func TestStoreLogger_Record(t *testing.T) {
	store := &memStore{}
	l, err := NewStoreLogger(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := domain.Outcome{Action: domain.ActionCustomResponse, Status: 403}
	if err := l.Record(context.Background(), sampleMap(), out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.RequestID != "req-9" || rec.Method != "GET" || rec.Path != "/login" || rec.RemoteIP != "203.0.113.7" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Action != domain.ActionCustomResponse || rec.Status != 403 {
		t.Errorf("expected outcome persisted, got action %q status %d", rec.Action, rec.Status)
	}
	if !strings.Contains(rec.Tags, "geo:fr") {
		t.Errorf("expected tags persisted, got %q", rec.Tags)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rec.RawMap), &raw); err != nil {
		t.Fatalf("raw map is not valid JSON: %v", err)
	}
	if len(raw) != 5 {
		t.Errorf("raw map must hold the five canonical keys, got %d", len(raw))
	}
}

func TestNewStoreLogger_RequiresStore(t *testing.T) {
	if _, err := NewStoreLogger(nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}

type countSink struct {
	calls int
	err   error
}

func (c *countSink) Record(ctx context.Context, m *domain.RequestMap, out domain.Outcome) error {
	c.calls++
	return c.err
}

func TestMulti_AllSinksRunDespiteFailure(t *testing.T) {
	failing := &countSink{err: errors.New("disk full")}
	ok := &countSink{}

	ml := NewMulti(failing, ok)
	err := ml.Record(context.Background(), sampleMap(), domain.PassOutcome())

	if err == nil {
		t.Fatal("expected joined error")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("expected every sink called once, got %d/%d", failing.calls, ok.calls)
	}
}
