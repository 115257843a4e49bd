package webgraph

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document id is absent from the index.
var ErrNotFound = errors.New("document not found")

// Index stores edge records and answers the queries the post-processor needs.
// Document keys are storage aliases; the index is told which alias carries
// the record id when it is constructed.
type Index interface {
	// Upsert inserts or replaces documents by id.
	Upsert(ctx context.Context, docs ...Document) error
	// Commit makes previous writes visible to queries.
	Commit(ctx context.Context) error
	// Get returns the document with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)
	// FindByField returns up to limit documents whose alias equals value.
	FindByField(ctx context.Context, alias, value string, limit int) ([]Document, error)
	// StreamPresent streams documents in which alias holds any value.
	StreamPresent(ctx context.Context, q PresenceQuery) *DocumentStream
}

// PresenceQuery selects documents where Alias has any value.
type PresenceQuery struct {
	Alias      string
	PageSize   int
	MaxResults int
	Timeout    time.Duration
	Buffer     int
}

// Query defaults.
const (
	DefaultPageSize   = 1000
	DefaultMaxResults = 100000
	DefaultTimeout    = time.Minute
	DefaultBuffer     = 50
)

// WithDefaults fills unset limits.
func (q PresenceQuery) WithDefaults() PresenceQuery {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
	if q.Timeout <= 0 {
		q.Timeout = DefaultTimeout
	}
	if q.Buffer <= 0 {
		q.Buffer = DefaultBuffer
	}
	return q
}

// ClickDepthResolver computes the link distance from a site root to a URL.
type ClickDepthResolver interface {
	ClickDepth(ctx context.Context, u *URL) (int, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Publisher pushes payloads to a downstream topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// URLStub is the (protocol, stub) identity of one edge endpoint.
type URLStub struct {
	Protocol string `json:"protocol"`
	Stub     string `json:"urlstub"`
}
