package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reelpress/internal/ports"
)

// metaSuffix names the sidecar file that carries custom object metadata.
// Sidecars are hidden from listings.
const metaSuffix = ".meta.json"

// Store implements ports.StorageProvider on the local filesystem, rooted at
// a configured directory. Intended for development and tests.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Provider() string { return "localfs" }

func (s *Store) path(objectKey string) string {
	return filepath.Join(s.root, filepath.FromSlash(objectKey))
}

func (s *Store) ListObjects(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ports.ObjectInfo{Key: key, Size: info.Size(), Updated: info.ModTime()})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	dst := s.path(in.ObjectKey)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.PutObjectOutput{}, err
	}

	outF, err := os.Create(dst)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	defer outF.Close()

	n, err := io.Copy(outF, in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}

	if len(in.Metadata) > 0 {
		b, err := json.Marshal(in.Metadata)
		if err != nil {
			return ports.PutObjectOutput{}, err
		}
		if err := os.WriteFile(dst+metaSuffix, b, 0o644); err != nil {
			return ports.PutObjectOutput{}, err
		}
	} else {
		_ = os.Remove(dst + metaSuffix)
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: n}, nil
}

func (s *Store) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	p := s.path(objectKey)
	f, err := os.Open(p)
	if err != nil {
		return nil, "", 0, err
	}

	st, statErr := f.Stat()
	if statErr == nil {
		size = st.Size()
	}

	// Prefer extension-based type. If empty, sniff first bytes.
	contentType = mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		buf := make([]byte, 512)
		n, _ := f.Read(buf)
		_, _ = f.Seek(0, 0)
		contentType = http.DetectContentType(buf[:n])
	}

	return f, contentType, size, nil
}

func (s *Store) DeleteObject(ctx context.Context, objectKey string) error {
	p := s.path(objectKey)
	_ = os.Remove(p + metaSuffix)
	return os.Remove(p)
}

func (s *Store) GetObjectMetadata(ctx context.Context, objectKey string) (map[string]string, ports.ObjectInfo, error) {
	p := s.path(objectKey)
	st, err := os.Stat(p)
	if err != nil {
		return nil, ports.ObjectInfo{}, err
	}
	info := ports.ObjectInfo{Key: objectKey, Size: st.Size(), Updated: st.ModTime()}

	md := map[string]string{}
	b, err := os.ReadFile(p + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return md, info, nil
		}
		return nil, info, err
	}
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, info, fmt.Errorf("corrupt metadata sidecar for %s: %w", objectKey, err)
	}
	return md, info, nil
}

func (s *Store) GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (ports.SignedURLOutput, error) {
	// Local provider has no real signing; a file URL stands in for dev use.
	abs, err := filepath.Abs(s.path(objectKey))
	if err != nil {
		return ports.SignedURLOutput{}, err
	}
	return ports.SignedURLOutput{
		URL:       "file://" + filepath.ToSlash(abs),
		ExpiresAt: time.Now().UTC().Add(expiresIn),
	}, nil
}
