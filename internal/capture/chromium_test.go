package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPNGRequiresURL(t *testing.T) {
	if _, err := PNG(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without URL")
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preview.png")
	if err := writeAtomic(path, []byte("png")); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "png" {
		t.Fatalf("read %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
