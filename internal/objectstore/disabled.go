package objectstore

import "context"

// Disabled is the store used when no storage backend is configured.
type Disabled struct{}

// Configured always reports false.
func (Disabled) Configured() bool { return false }

// Exists reports every key as absent.
func (Disabled) Exists(context.Context, string) (bool, error) { return false, nil }

// Put rejects the write.
func (Disabled) Put(context.Context, string, []byte, string) error { return ErrNotConfigured }

// Delete rejects the delete.
func (Disabled) Delete(context.Context, string) error { return ErrNotConfigured }
