// Package media resolves feed item media keys to client-fetchable URLs.
// The production resolver presigns S3 GETs; a path resolver serves as the
// local-development fallback.
package media

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Resolver resolves a storage key to a URL a client can fetch.
type Resolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// ErrEmptyKey reports a blank media key.
var ErrEmptyKey = errors.New("media: empty key")

// S3Resolver produces presigned GET URLs for objects in one bucket.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	resolver := media.NewS3Resolver(s3.NewFromConfig(cfg), "feed-media")
type S3Resolver struct {
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

// S3Option configures an S3Resolver.
type S3Option func(*S3Resolver)

// WithExpiry sets how long presigned URLs stay valid (default 24h).
func WithExpiry(d time.Duration) S3Option {
	return func(r *S3Resolver) { r.expiry = d }
}

// NewS3Resolver creates a resolver over client and bucket.
func NewS3Resolver(client *s3.Client, bucket string, opts ...S3Option) *S3Resolver {
	r := &S3Resolver{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		expiry:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveURL presigns a GET for key.
func (r *S3Resolver) ResolveURL(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PathResolver maps keys onto a base URL, for local development and tests.
type PathResolver struct {
	// Base is prepended to every key, e.g. "/media/".
	Base string
}

// ResolveURL joins the base with the key.
func (r PathResolver) ResolveURL(_ context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	base := r.Base
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + key, nil
}
