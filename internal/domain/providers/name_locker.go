package providers

import "context"

// NameLocker serializes work on a key across processes. Acquire blocks until
// the lease is held or ctx ends; the returned func releases it.
type NameLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
