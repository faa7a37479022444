// Package blob issues time-limited read links for private objects.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"school_portal_core/internal/apperr"
)

// DefaultTTL is the lifetime of every signed URL the portal issues.
const DefaultTTL = 15 * time.Minute

// AssetClass selects the bucket an object lives in.
type AssetClass string

const (
	AssetLegalDocuments AssetClass = "legal_documents"
	AssetResources      AssetClass = "resources"
	AssetSignatures     AssetClass = "signatures"
	AssetReportCards    AssetClass = "report_cards"
)

var ErrInvalidPath = errors.New("invalid object path")

// Buckets maps each asset class to a bucket name.
type Buckets map[AssetClass]string

// Signer creates a signed GET URL for bucket/key.
type Signer interface {
	SignURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// OSSSigner signs URLs with the Aliyun OSS SDK. Signing is local; no request
// is made to OSS.
type OSSSigner struct {
	client *oss.Client
}

func NewOSSSigner(endpoint, accessKey, secretKey string) (*OSSSigner, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing OSS endpoint or credentials")
	}
	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	return &OSSSigner{client: client}, nil
}

func (s *OSSSigner) SignURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	bkt, err := s.client.Bucket(bucket)
	if err != nil {
		return "", apperr.UpstreamClient("oss", err)
	}
	url, err := bkt.SignURL(key, oss.HTTPGet, int64(ttl/time.Second))
	if err != nil {
		var se oss.ServiceError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return "", apperr.UpstreamClient("oss", err)
		}
		return "", apperr.Upstream("oss", err)
	}
	return url, nil
}

var ErrSigningDisabled = errors.New("object storage is not configured")

// DisabledSigner stands in for OSSSigner when no credentials are configured.
type DisabledSigner struct{}

func (DisabledSigner) SignURL(context.Context, string, string, time.Duration) (string, error) {
	return "", apperr.Upstream("oss", ErrSigningDisabled)
}

// Service is the createSignedUrl collaborator used by the workflows.
type Service struct {
	signer  Signer
	buckets Buckets
	ttl     time.Duration
}

func NewService(signer Signer, buckets Buckets, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{signer: signer, buckets: buckets, ttl: ttl}
}

// TTL is the lifetime applied to every URL from this service.
func (s *Service) TTL() time.Duration { return s.ttl }

// CreateSignedURL returns a link granting temporary read access to key in
// the bucket configured for class.
func (s *Service) CreateSignedURL(ctx context.Context, class AssetClass, key string) (string, error) {
	bucket, ok := s.buckets[class]
	if !ok || bucket == "" {
		return "", apperr.Validation("no bucket configured for %s", class)
	}
	clean, err := CleanKey(key)
	if err != nil {
		return "", apperr.ValidationWrap(err, "invalid object path %q", key)
	}
	return s.signer.SignURL(ctx, bucket, clean, s.ttl)
}

// CleanKey normalizes an object key and rejects empty keys and keys that
// escape the bucket root.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(k, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	k = strings.TrimPrefix(path.Clean("/"+k), "/")
	if k == "" || k == "." {
		return "", ErrInvalidPath
	}
	return k, nil
}
