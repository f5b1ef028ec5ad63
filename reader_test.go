package zipjis_test

import (
	"context"
	"os"
	"testing"

	"github.com/motoki317/zipjis"
)

func TestFileReaderReadAt(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "zipjis-reader-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString("the quick brown fox"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	r, err := zipjis.NewFileReader(f)
	if err != nil {
		t.Fatalf("NewFileReader: %v", err)
	}

	ctx := context.Background()
	size, err := r.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != int64(len("the quick brown fox")) {
		t.Errorf("Size = %d", size)
	}

	buf := make([]byte, 5)
	n, err := r.ReadAt(ctx, buf, 4)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 5 || string(buf) != "quick" {
		t.Errorf("got %q (%d)", buf, n)
	}
}

func TestMemoryReaderShortReadAtEOF(t *testing.T) {
	r := zipjis.NewMemoryReader([]byte("abc"))
	buf := make([]byte, 5)
	n, err := r.ReadAt(context.Background(), buf, 1)
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
	if err == nil {
		t.Error("expected io.EOF on a short read")
	}
}
