// Package accesslog forwards the final RequestMap of each request to the
// configured access-log sinks. The pipeline calls it exactly once per
// request, whichever branch the verdict took.
package accesslog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/curiefense/curieproxy-go/internal/core/domain"
	"github.com/curiefense/curieproxy-go/internal/core/ports"
	"github.com/curiefense/curieproxy-go/internal/storage"
)

// SlogLogger emits one structured log line per request.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a sink writing to the given structured logger.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

// Record writes the access line. Attribute values come from the final
// map, so engine-rewritten attributes are what gets logged.
func (l *SlogLogger) Record(ctx context.Context, m *domain.RequestMap, out domain.Outcome) error {
	attrs := []slog.Attr{
		slog.String("request_id", m.RequestID()),
		slog.String("method", attrString(m, domain.AttrMethod)),
		slog.String("path", attrString(m, domain.AttrPath)),
		slog.String("authority", attrString(m, domain.AttrAuthority)),
		slog.String("ip", attrString(m, domain.AttrIP)),
		slog.String("action", out.Action),
	}
	if out.Status > 0 {
		attrs = append(attrs, slog.Int("response_status", out.Status))
	}
	if tags := tagsJSON(m); tags != "" {
		attrs = append(attrs, slog.String("tags", tags))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "access", attrs...)
	return nil
}

// StoreLogger persists each request's final map through a RecordStore.
type StoreLogger struct {
	store storage.RecordStore
}

// NewStoreLogger wraps a record store as an access-log sink.
func NewStoreLogger(store storage.RecordStore) (*StoreLogger, error) {
	if store == nil {
		return nil, fmt.Errorf("record store required")
	}
	return &StoreLogger{store: store}, nil
}

// Record converts the map and outcome into an AccessRecord and appends
// it.
func (l *StoreLogger) Record(ctx context.Context, m *domain.RequestMap, out domain.Outcome) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal request map: %w", err)
	}

	return l.store.Append(ctx, &storage.AccessRecord{
		RequestID: m.RequestID(),
		Method:    attrString(m, domain.AttrMethod),
		Path:      attrString(m, domain.AttrPath),
		Authority: attrString(m, domain.AttrAuthority),
		RemoteIP:  attrString(m, domain.AttrIP),
		Action:    out.Action,
		Status:    out.Status,
		Tags:      tagsJSON(m),
		RawMap:    string(raw),
	})
}

// Multi fans one Record call out to every sink. All sinks run even when
// an earlier one fails; failures are joined.
type Multi struct {
	sinks []ports.AccessLogger
}

// NewMulti combines sinks into one logger.
func NewMulti(sinks ...ports.AccessLogger) *Multi {
	return &Multi{sinks: sinks}
}

func (ml *Multi) Record(ctx context.Context, m *domain.RequestMap, out domain.Outcome) error {
	var errs []error
	for _, sink := range ml.sinks {
		if err := sink.Record(ctx, m, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func attrString(m *domain.RequestMap, key string) string {
	if v, ok := m.Attrs[key].(string); ok {
		return v
	}
	return ""
}

// tagsJSON extracts the engine-assigned tag object from attrs, if any.
func tagsJSON(m *domain.RequestMap) string {
	tags, ok := m.Attrs["tags"]
	if !ok {
		return ""
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(b)
}

var (
	_ ports.AccessLogger = (*SlogLogger)(nil)
	_ ports.AccessLogger = (*StoreLogger)(nil)
	_ ports.AccessLogger = (*Multi)(nil)
)
