package blog

import (
	"context"
	"io"
)

// Fetcher retrieves the document at a location. Implementations return a
// *FetchError for transport failures and non-2xx statuses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordSink appends records to a durable store and reports how many rows it wrote.
type RecordSink interface {
	Persist(ctx context.Context, records []Record) (int, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
