package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists attachment bytes and returns a URL that can be rendered.
type Store interface {
	Save(ctx context.Context, data []byte, contentType, filename string) (string, error)
}

// DiskStore writes files under Dir and exposes them below BaseURL.
type DiskStore struct {
	Dir     string
	BaseURL string
}

// NewDiskStore creates dir when missing.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes data to a fresh, collision-free file name. The extension comes
// from filename, falling back to the content type.
func (s *DiskStore) Save(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + extensionFor(contentType, filename)
	tmp := filepath.Join(s.Dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.Dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit media: %w", err)
	}
	return s.BaseURL + "/" + name, nil
}

func extensionFor(contentType, filename string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if ct, _, err := mime.ParseMediaType(contentType); err == nil {
		switch ct {
		case "image/jpeg":
			return ".jpg"
		case "application/pdf":
			return ".pdf"
		}
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			return exts[0]
		}
	}
	return ".bin"
}
