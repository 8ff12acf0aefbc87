// Package blobstore hands out time-limited links to uploaded document files.
// Files are written by the ingestion pipeline; this service only reads.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrBlobNotFound = errors.New("blob not found")

// Store issues presigned download URLs for object keys.
type Store interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ---------------------------------------------------------------------------
// S3
// ---------------------------------------------------------------------------

type S3Options struct {
	Bucket string
	Region string
	// Endpoint points the client at an S3-compatible service such as MinIO.
	// Path-style addressing is used whenever it is set.
	Endpoint string
}

// S3Store presigns GetObject requests against one bucket.
type S3Store struct {
	bucket  string
	presign func(ctx context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error)
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	pc := s3.NewPresignClient(client)

	return &S3Store{
		bucket: opts.Bucket,
		presign: func(ctx context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error) {
			req, err := pc.PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
	}, nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key = NormalizeKey(key, s.bucket)
	if key == "" {
		return "", ErrBlobNotFound
	}
	u, err := s.presign(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, ttl)
	if err != nil {
		return "", fmt.Errorf("blobstore: presign %s: %w", key, err)
	}
	return u, nil
}

// NormalizeKey turns a stored blob path into an object key. Paths written by
// older uploads carry a gs:// or s3:// scheme and the bucket name.
func NormalizeKey(path, bucket string) string {
	path = strings.TrimSpace(path)
	if u, err := url.Parse(path); err == nil && (u.Scheme == "s3" || u.Scheme == "gs") {
		path = strings.TrimPrefix(u.Path, "/")
	}
	path = strings.TrimPrefix(path, "/")
	if bucket != "" {
		path = strings.TrimPrefix(path, bucket+"/")
	}
	return path
}

// ---------------------------------------------------------------------------
// In-memory
// ---------------------------------------------------------------------------

// MemoryStore serves keys registered with Put. Used in tests and when
// running without object storage.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	keys    map[string]struct{}
	now     func() time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimSuffix(baseURL, "/"), keys: make(map[string]struct{}), now: time.Now}
}

func (m *MemoryStore) Put(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[NormalizeKey(key, "")] = struct{}{}
}

func (m *MemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	key = NormalizeKey(key, "")
	m.mu.RLock()
	_, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrBlobNotFound
	}
	q := url.Values{"expires": {fmt.Sprint(m.now().Add(ttl).Unix())}}
	return m.baseURL + "/" + key + "?" + q.Encode(), nil
}
