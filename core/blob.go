package core

import (
	"context"

	"github.com/pkg/errors"
)

var ErrBlobNotFound = errors.New("blob not found")

type (
	Blob struct {
		Key         string
		ContentType string
		Data        []byte
	}

	// BlobStore stores binary documents (signature images, SOP attachments) by key.
	BlobStore interface {
		Put(ctx context.Context, blob Blob) error
		Get(ctx context.Context, key string) (Blob, error)
		Delete(ctx context.Context, key string) error
	}
)
