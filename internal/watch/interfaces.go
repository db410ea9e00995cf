package watch

import (
	"context"
	"time"
)

// RowStore is the tabular persistent store holding one record per target.
// UpdateCell failures are treated as non-fatal per field by callers; a row
// may disappear between List and UpdateCell.
type RowStore interface {
	// List returns every monitored target in store iteration order.
	List(ctx context.Context) ([]MonitorTarget, error)

	// UpdateCell writes a single field of a row.
	UpdateCell(ctx context.Context, ref RowRef, field Field, value string) error

	// UpdateState writes fingerprint and length together, so the pair is
	// atomic from the detector's point of view.
	UpdateState(ctx context.Context, ref RowRef, fingerprint string, length int) error

	// DeleteRow removes a row from the store.
	DeleteRow(ctx context.Context, ref RowRef) error
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless re-fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Pusher delivers a text message to an opaque recipient.
type Pusher interface {
	Push(ctx context.Context, recipient string, text string) error
}

// Oracle synthesizes a search URL from a site name and keyword. Used only
// when no static template matches.
type Oracle interface {
	GenerateURL(ctx context.Context, source string, word string) (string, error)
}

// Limiter throttles outbound fetches per domain.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes content fingerprints.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
