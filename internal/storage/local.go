package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local writes files under Dir and serves them from PublicBaseURL.
type Local struct {
	Dir           string
	PublicBaseURL string
}

func NewLocal(dir, publicBaseURL string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{Dir: dir, PublicBaseURL: publicBaseURL}, nil
}

func (l *Local) Put(ctx context.Context, caseID, name string, data []byte, mimeType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	key := objectKey(caseID, name)
	dest := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return Object{}, fmt.Errorf("write %s: %w", key, err)
	}
	return Object{
		ID:       key,
		URL:      joinURL(l.PublicBaseURL, key),
		MimeType: DetectMIME(mimeType, data),
		Size:     int64(len(data)),
	}, nil
}

func (l *Local) Delete(_ context.Context, id string) error {
	clean := filepath.Clean(filepath.FromSlash(id))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid object id %q", id)
	}
	err := os.Remove(filepath.Join(l.Dir, clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
