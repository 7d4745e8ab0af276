// Package gcs implements the storage port against Google Cloud Storage using
// the JSON API client. Signed URLs are produced by V4 query signing with the
// service account key, since the JSON API has no presign call.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storagev1 "google.golang.org/api/storage/v1"

	"reelpress/internal/ports"
)

type Config struct {
	Bucket string
	// KeyFile is the path to a service account JSON key. It authenticates
	// API calls and signs URLs.
	KeyFile string
}

type Store struct {
	svc    *storagev1.Service
	bucket string
	signer *urlSigner
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("gcs configuration incomplete")
	}

	keyJSON, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gcs key file: %w", err)
	}
	saConf, err := google.JWTConfigFromJSON(keyJSON, storagev1.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("invalid gcs service account key: %w", err)
	}
	signer, err := newURLSigner(saConf.Email, saConf.PrivateKey)
	if err != nil {
		return nil, err
	}

	svc, err := storagev1.NewService(ctx, option.WithCredentialsJSON(keyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs service: %w", err)
	}

	return &Store{svc: svc, bucket: cfg.Bucket, signer: signer}, nil
}

func (s *Store) Provider() string { return "gcs" }

func (s *Store) ListObjects(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	err := s.svc.Objects.List(s.bucket).Prefix(prefix).Pages(ctx, func(page *storagev1.Objects) error {
		for _, obj := range page.Items {
			out = append(out, ports.ObjectInfo{
				Key:     obj.Name,
				Size:    int64(obj.Size),
				Updated: parseRFC3339(obj.Updated),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list gcs objects: %w", err)
	}
	return out, nil
}

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	obj := &storagev1.Object{Name: in.ObjectKey, Metadata: in.Metadata}
	call := s.svc.Objects.Insert(s.bucket, obj)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("failed to upload to gcs: %w", err)
	}
	return ports.PutObjectOutput{ObjectKey: created.Name, Size: int64(created.Size)}, nil
}

func (s *Store) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	resp, err := s.svc.Objects.Get(s.bucket, objectKey).Context(ctx).Download()
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to get gcs object: %w", err)
	}
	return resp.Body, resp.Header.Get("Content-Type"), resp.ContentLength, nil
}

func (s *Store) DeleteObject(ctx context.Context, objectKey string) error {
	if err := s.svc.Objects.Delete(s.bucket, objectKey).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete from gcs: %w", err)
	}
	return nil
}

func (s *Store) GetObjectMetadata(ctx context.Context, objectKey string) (map[string]string, ports.ObjectInfo, error) {
	obj, err := s.svc.Objects.Get(s.bucket, objectKey).Context(ctx).Do()
	if err != nil {
		return nil, ports.ObjectInfo{}, fmt.Errorf("failed to stat gcs object: %w", err)
	}
	info := ports.ObjectInfo{
		Key:     obj.Name,
		Size:    int64(obj.Size),
		Updated: parseRFC3339(obj.Updated),
	}
	md := obj.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return md, info, nil
}

func (s *Store) GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (ports.SignedURLOutput, error) {
	now := time.Now().UTC()
	u, err := s.signer.Sign(s.bucket, objectKey, now, expiresIn)
	if err != nil {
		return ports.SignedURLOutput{}, fmt.Errorf("failed to sign gcs url: %w", err)
	}
	return ports.SignedURLOutput{URL: u, ExpiresAt: now.Add(expiresIn)}, nil
}

func parseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// escapeObjectPath escapes each path segment of an object key for use in a
// signed URL, keeping slashes literal.
func escapeObjectPath(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
