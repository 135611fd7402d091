// Package storage defines the persisted access-log record and the store
// contract its backends implement.
package storage

import (
	"context"
	"time"
)

// AccessRecord is one persisted access-log entry. RawMap holds the final
// serialized RequestMap (engine-enriched when a verdict was obtained);
// the scalar columns are denormalized from it for querying.
type AccessRecord struct {
	RequestID string
	Method    string
	Path      string
	Authority string
	RemoteIP  string
	Action    string // enforced verdict action, "pass" on fail-open
	Status    int    // custom-response status, 0 when none was applied
	Tags      string // JSON object of engine-assigned tags, may be empty
	RawMap    string // full serialized RequestMap
	CreatedAt time.Time
}

// RecordStore persists access records.
type RecordStore interface {
	Append(ctx context.Context, rec *AccessRecord) error
	Close() error
}
