// Package artifacts turns stored output references into URLs a client
// can fetch. Rendered artifacts live either in object storage (as
// s3://bucket/key references, resolved into presigned URLs) or behind a
// CDN (plain https URLs, passed through untouched).
package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Resolver turns an output reference into a client-usable URL
type Resolver interface {
	ResolveURL(ctx context.Context, outputRef string) (string, error)
}

// PassthroughResolver returns references unchanged. Used when artifacts
// are already published behind public URLs, and in tests.
type PassthroughResolver struct{}

func (PassthroughResolver) ResolveURL(ctx context.Context, outputRef string) (string, error) {
	return outputRef, nil
}

// MinioResolver presigns object-storage references with a time-limited
// GET URL. Plain http(s) references pass through unchanged.
type MinioResolver struct {
	client *minio.Client
	expiry time.Duration
}

// MinioConfig holds object storage configuration
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Expiry    time.Duration
}

// NewMinioResolver creates a presigning resolver
func NewMinioResolver(cfg MinioConfig) (*MinioResolver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &MinioResolver{client: client, expiry: expiry}, nil
}

// ResolveURL presigns s3://bucket/key references; anything else is
// returned as-is.
func (r *MinioResolver) ResolveURL(ctx context.Context, outputRef string) (string, error) {
	bucket, object, ok := splitObjectRef(outputRef)
	if !ok {
		return outputRef, nil
	}

	u, err := r.client.PresignedGetObject(ctx, bucket, object, r.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", outputRef, err)
	}
	return u.String(), nil
}

// splitObjectRef parses s3://bucket/key into its parts
func splitObjectRef(ref string) (bucket, object string, ok bool) {
	const scheme = "s3://"
	if !strings.HasPrefix(ref, scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(ref, scheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
