package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	pdf := []byte("%PDF-1.4\n%test\n")
	obj, err := l.Put(context.Background(), "2024-05-01T09:00:00+09:00", "../report.pdf", pdf, "")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(obj.ID, "cases/2024-05-01T09_00_00_09_00/") || !strings.HasSuffix(obj.ID, "/report.pdf") {
		t.Fatalf("unexpected id %q", obj.ID)
	}
	if obj.MimeType != "application/pdf" || obj.Size != int64(len(pdf)) {
		t.Fatalf("unexpected object %+v", obj)
	}
	if obj.URL != "http://localhost:8080/files/"+obj.ID {
		t.Fatalf("unexpected url %q", obj.URL)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(obj.ID))); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	if err := l.Delete(context.Background(), obj.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.Delete(context.Background(), obj.ID); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if err := l.Delete(context.Background(), "../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestDetectMIMEPrefersDeclared(t *testing.T) {
	if got := DetectMIME("image/png", []byte("hello")); got != "image/png" {
		t.Fatalf("expected declared type, got %q", got)
	}
	if got := DetectMIME("application/octet-stream", []byte("hello world")); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("expected sniffed text/plain, got %q", got)
	}
}
