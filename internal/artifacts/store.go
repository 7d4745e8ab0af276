// Package artifacts wraps the storage provider with the upload-time
// bookkeeping the reaper relies on. Every object written through this layer
// carries an uploadedTime metadata entry rendered in the configured reference
// timezone.
package artifacts

import (
	"context"
	"io"
	"strings"
	"time"

	"reelpress/internal/ports"
	apperrors "reelpress/internal/pkg/errors"
	"reelpress/internal/pkg/logger"
)

const (
	// MetadataKeyUploadedTime is the custom metadata key stamped on upload.
	MetadataKeyUploadedTime = "uploadedTime"

	// TimeFormat is the wall-clock layout used for uploadedTime values.
	TimeFormat = "2006-01-02 15:04:05"
)

// Store layers uploadedTime stamping and lookup over a storage provider.
type Store struct {
	sp  ports.StorageProvider
	loc *time.Location
	log *logger.Logger
	now func() time.Time
}

func NewStore(sp ports.StorageProvider, loc *time.Location, log *logger.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		sp:  sp,
		loc: loc,
		log: log.WithComponent("artifacts"),
		now: time.Now,
	}
}

// Provider reports the backing provider name.
func (s *Store) Provider() string { return s.sp.Provider() }

// Upload writes the object and stamps uploadedTime with the current wall
// clock in the reference timezone. Extra metadata entries are preserved.
func (s *Store) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, metadata map[string]string) error {
	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md[MetadataKeyUploadedTime] = s.now().In(s.loc).Format(TimeFormat)

	_, err := s.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   key,
		ContentType: contentType,
		Reader:      r,
		Size:        size,
		Metadata:    md,
	})
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "artifacts.Upload", "uploading "+key)
	}
	s.log.Debug("object uploaded", "key", key, "size", size)
	return nil
}

// Download opens the object for reading. The caller owns the ReadCloser.
func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, _, _, err := s.sp.GetObject(ctx, key)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "artifacts.Download", "downloading "+key)
	}
	return rc, nil
}

// ReadAll downloads the object and returns its full contents.
func (s *Store) ReadAll(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "artifacts.ReadAll", "reading "+key)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.sp.DeleteObject(ctx, key); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "artifacts.Delete", "deleting "+key)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	objs, err := s.sp.ListObjects(ctx, prefix)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "artifacts.List", "listing "+prefix)
	}
	return objs, nil
}

func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	out, err := s.sp.GetSignedURL(ctx, key, ttl)
	if err != nil {
		return "", time.Time{}, apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "artifacts.SignedURL", "signing "+key)
	}
	return out.URL, out.ExpiresAt, nil
}

// UploadedTime reads the object's uploadedTime metadata and parses it in the
// reference timezone. Metadata keys are matched case-insensitively because
// some backends fold them to lowercase. The second return is the object's
// native listing info, usable as a fallback when the stamp is absent.
func (s *Store) UploadedTime(ctx context.Context, key string) (time.Time, ports.ObjectInfo, error) {
	md, info, err := s.sp.GetObjectMetadata(ctx, key)
	if err != nil {
		return time.Time{}, ports.ObjectInfo{}, apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "artifacts.UploadedTime", "reading metadata for "+key)
	}

	raw, ok := lookupFold(md, MetadataKeyUploadedTime)
	if !ok {
		return time.Time{}, info, apperrors.Newf(apperrors.CodeNotFound, "object %s has no %s metadata", key, MetadataKeyUploadedTime)
	}

	ts, err := time.ParseInLocation(TimeFormat, raw, s.loc)
	if err != nil {
		return time.Time{}, info, apperrors.WrapWithCode(err, apperrors.CodeValidation, "artifacts.UploadedTime", "parsing uploadedTime for "+key)
	}
	return ts, info, nil
}

func lookupFold(md map[string]string, key string) (string, bool) {
	if v, ok := md[key]; ok {
		return v, true
	}
	for k, v := range md {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
