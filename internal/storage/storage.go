package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

type Uploader interface {
	// Upload stores the object and returns its key.
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader, size int64) (key string, err error)
}

type Downloader interface {
	Download(ctx context.Context, objectName string) ([]byte, error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

// BlobStore is the object storage for originals and version snapshots.
type BlobStore interface {
	Uploader
	Downloader
	Signer
}

var ErrObjectNotFound = errors.New("object not found")

// maxDownloadBytes bounds what Download reads into memory.
const maxDownloadBytes = 64 << 20

func readAllLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxDownloadBytes {
		return nil, errors.New("object exceeds download limit")
	}
	return b, nil
}
