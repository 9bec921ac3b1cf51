// Package storage persists uploaded report files. Uploads go to S3 when it
// is configured and fall back to the local upload directory otherwise.
package storage

import (
	"context"
	"errors"
)

// Backend names reported in Object.Method.
const (
	MethodS3    = "s3"
	MethodLocal = "local"
)

// ErrDisabled is returned by a store that is not configured.
var ErrDisabled = errors.New("storage backend disabled")

// PutInput is a file to store.
type PutInput struct {
	Ext         string // lowercased extension including the dot, e.g. ".pdf"
	ContentType string
	Body        []byte
}

// Object describes a stored file.
type Object struct {
	Key    string
	URL    string
	Method string
}

// Store writes files and returns where they can be read back.
type Store interface {
	Put(ctx context.Context, in PutInput) (Object, error)
}
