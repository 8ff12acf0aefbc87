package blobstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		path, bucket, want string
	}{
		{"uploads/phys-1/scan.pdf", "docs", "uploads/phys-1/scan.pdf"},
		{"/uploads/scan.pdf", "docs", "uploads/scan.pdf"},
		{"docs/uploads/scan.pdf", "docs", "uploads/scan.pdf"},
		{"gs://docs/uploads/scan.pdf", "docs", "uploads/scan.pdf"},
		{"s3://docs/uploads/scan.pdf", "", "uploads/scan.pdf"},
		{"  ", "docs", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.path, tt.bucket); got != tt.want {
			t.Errorf("NormalizeKey(%q, %q) = %q, want %q", tt.path, tt.bucket, got, tt.want)
		}
	}
}

func TestS3Store_PresignGet(t *testing.T) {
	var gotIn *s3.GetObjectInput
	var gotTTL time.Duration
	store := &S3Store{
		bucket: "docs",
		presign: func(_ context.Context, in *s3.GetObjectInput, ttl time.Duration) (string, error) {
			gotIn, gotTTL = in, ttl
			return "https://docs.s3.amazonaws.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc", nil
		},
	}

	u, err := store.PresignGet(context.Background(), "gs://docs/uploads/scan.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(u, "uploads/scan.pdf") {
		t.Errorf("unexpected url %q", u)
	}
	if aws.ToString(gotIn.Bucket) != "docs" || aws.ToString(gotIn.Key) != "uploads/scan.pdf" {
		t.Errorf("unexpected input bucket=%q key=%q", aws.ToString(gotIn.Bucket), aws.ToString(gotIn.Key))
	}
	if gotTTL != 15*time.Minute {
		t.Errorf("expected 15m ttl, got %s", gotTTL)
	}

	if _, err := store.PresignGet(context.Background(), "", time.Minute); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound for empty key, got %v", err)
	}
}

func TestNewS3Store_Endpoint(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	store, err := NewS3Store(context.Background(), S3Options{
		Bucket:   "docs",
		Region:   "us-east-1",
		Endpoint: "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := store.PresignGet(context.Background(), "uploads/scan.pdf", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(u, "http://localhost:9000/docs/uploads/scan.pdf?") {
		t.Errorf("expected path-style url, got %q", u)
	}
	if !strings.Contains(u, "X-Amz-Expires=60") {
		t.Errorf("expected 60s expiry in %q", u)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore("http://blobs.local/")
	m.now = func() time.Time { return time.Unix(1000, 0) }
	m.Put("uploads/scan.pdf")

	u, err := m.PresignGet(context.Background(), "/uploads/scan.pdf", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != "http://blobs.local/uploads/scan.pdf?expires=1060" {
		t.Errorf("unexpected url %q", u)
	}

	if _, err := m.PresignGet(context.Background(), "missing.pdf", time.Minute); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}
