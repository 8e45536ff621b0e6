package download

import "context"

// Locator resolves a storage id to a short-lived access URL. Resolution
// must be idempotent and safely retryable: every call may return a fresh
// URL for the same blob.
type Locator interface {
	Resolve(ctx context.Context, storageID string) (string, error)
}

// Saver fetches a resolved URL and persists it under the given filename.
type Saver interface {
	Save(ctx context.Context, url, filename string) error
}
