package config

import "context"

// Loader is the interface for a format-specific catalog loader.
type Loader interface {
	// Load reads every catalog file found under the given paths and returns
	// the merged, cross-referenced catalog.
	Load(ctx context.Context, paths ...string) (*Catalog, error)
}
