package config

import "context"

// Loader translates pipeline documents from a concrete format into the
// agnostic Model. Paths may be single files or directories searched
// recursively for the format's extension.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}
