package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested path does not exist in storage.
var ErrNotFound = errors.New("not found")

// Storage provides an abstraction over key-value style file storage.
// Paths are slash separated and relative to the storage root.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ChangeKind classifies an out-of-band modification seen by a Watcher.
type ChangeKind string

const (
	ChangeWritten ChangeKind = "written"
	ChangeRemoved ChangeKind = "removed"
)

// Change is a modification under a watched prefix.
type Change struct {
	Path string
	Kind ChangeKind
}

// Watcher is implemented by storages that can report modifications made
// by other processes.
type Watcher interface {
	Watch(ctx context.Context, prefix string, fn func(Change)) error
}
