package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocal_RoundTrip(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	data := []byte("%PDF-1.4 fake content")
	if err := l.Upload(ctx, data, "user-1/1718000000-scan.pdf", "application/pdf"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := l.Download(ctx, "user-1/1718000000-scan.pdf")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Download = %q, want %q", got, data)
	}

	if err := l.Delete(ctx, "user-1/1718000000-scan.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := l.Download(ctx, "user-1/1718000000-scan.pdf"); err == nil {
		t.Error("Download after Delete succeeded, want error")
	}
}

func TestLocal_DeleteMissingIsNoop(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := l.Delete(context.Background(), "never/there.pdf"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func TestLocal_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	if err := l.Upload(ctx, []byte("x"), "../outside.txt", "text/plain"); err == nil {
		t.Error("Upload with traversal path succeeded, want error")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "outside.txt")); err == nil {
		t.Error("traversal file was written outside the storage root")
	}
}
