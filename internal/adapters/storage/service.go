// Package storage archives raw job payloads in S3-compatible object storage.
package storage

import (
	"context"
)

// Archive stores immutable blobs under a key.
type Archive interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketSyncArchive() string
	IsMinIOEnabled() bool
}

// NoopArchive discards everything.
type NoopArchive struct{}

func (NoopArchive) Put(context.Context, string, string, []byte) error { return nil }
