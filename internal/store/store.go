// Package store exposes the object-store operations the mapper needs against
// its two logical containers.
package store

import (
	"context"
	"errors"
)

// Container names one of the two logical buckets.
type Container string

const (
	Source Container = "source"
	Sink   Container = "sink"
)

var (
	ErrNotFound         = errors.New("object not found")
	ErrUnknownContainer = errors.New("unknown container")
	ErrInvalidKey       = errors.New("invalid key")
)

// Gateway abstracts existence checks, downloads and uploads. Exists reports a
// missing key as false with a nil error; only transport or auth problems are
// errors. Fetch returns ErrNotFound for a missing key. Put overwrites.
type Gateway interface {
	Exists(ctx context.Context, c Container, key string) (bool, error)
	Fetch(ctx context.Context, c Container, key, destPath string) error
	Put(ctx context.Context, c Container, key, srcPath string) error
}
