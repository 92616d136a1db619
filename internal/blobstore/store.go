package blobstore

import "context"

// Store is the subset of object storage the pipeline needs. Upload always
// overwrites an existing object of the same name.
type Store interface {
	List(ctx context.Context, container string) ([]string, error)
	Download(ctx context.Context, container, name string) ([]byte, error)
	Upload(ctx context.Context, container, name string, data []byte) error
}

// Ensure implementations satisfy Store.
var _ Store = (*Azure)(nil)
var _ Store = (*Memory)(nil)
