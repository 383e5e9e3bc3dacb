// Package objectstore stores processed clips and makes them public.
package objectstore

import (
	"context"
	"io"
)

// Store uploads objects.
type Store interface {
	// Upload stores the object under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, r io.Reader) (url string, err error)
}
