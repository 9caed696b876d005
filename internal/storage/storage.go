// Package storage keeps attachment bytes outside the row store.
package storage

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type Object struct {
	ID       string
	URL      string
	MimeType string
	Size     int64
}

// FileStore persists uploaded files. Delete of a missing object is not an
// error.
type FileStore interface {
	Put(ctx context.Context, caseID, name string, data []byte, mimeType string) (Object, error)
	Delete(ctx context.Context, id string) error
}

// DetectMIME prefers a specific declared type and sniffs the content otherwise.
func DetectMIME(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectKey builds cases/<case>/<uuid>/<name> with path-safe segments.
func objectKey(caseID, name string) string {
	c := strings.Trim(unsafeChars.ReplaceAllString(caseID, "_"), "_")
	if c == "" {
		c = "unknown"
	}
	n := path.Base(strings.ReplaceAll(name, "\\", "/"))
	n = strings.Trim(unsafeChars.ReplaceAllString(n, "_"), "_")
	if n == "" || n == "." {
		n = "file"
	}
	return path.Join("cases", c, uuid.NewString(), n)
}

func joinURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	return strings.TrimRight(base, "/") + "/" + key
}
