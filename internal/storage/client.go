// Package storage reads originals from a read-only bucket and writes
// transformed variants to a second, optional bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrWriteThroughDisabled = errors.New("transformed-image bucket is not configured")

type Config struct {
	Endpoint          string
	Access            string
	Secret            string
	OriginalBucket    string
	TransformedBucket string // empty disables write-through
	UseSSL            bool
}

type Gateway struct {
	minio             *minio.Client
	originalBucket    string
	transformedBucket string
}

func NewGateway(cfg Config) (*Gateway, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.OriginalBucket) == "" {
		return nil, fmt.Errorf("original bucket is required")
	}

	return &Gateway{
		minio:             mc,
		originalBucket:    cfg.OriginalBucket,
		transformedBucket: strings.TrimSpace(cfg.TransformedBucket),
	}, nil
}

// WriteThroughEnabled reports whether a transformed-image bucket was
// configured at startup.
func (g *Gateway) WriteThroughEnabled() bool {
	return g.transformedBucket != ""
}

// FetchOriginal reads the original image bytes and content type for key.
func (g *Gateway) FetchOriginal(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := g.minio.GetObject(ctx, g.originalBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat object %s: %w", key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", key, err)
	}

	return data, info.ContentType, nil
}

// StoreTransformed persists a transformed variant under its cache key. The
// caller treats failure as diagnostic only; the variant has already been
// served by then.
func (g *Gateway) StoreTransformed(ctx context.Context, key string, data []byte, contentType, cacheControl string) error {
	if g.transformedBucket == "" {
		return ErrWriteThroughDisabled
	}

	_, err := g.minio.PutObject(
		ctx,
		g.transformedBucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			CacheControl: cacheControl,
		},
	)
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
