package diskcache

import (
	"path/filepath"
	"testing"
)

func TestOpenPersists(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Put([]byte("0x1coinmainnet"), []byte{0xa1, 0x1c}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	got, err := db.Get([]byte("0x1coinmainnet"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string([]byte{0xa1, 0x1c}) {
		t.Fatalf("unexpected value %x", got)
	}
}

func TestPath(t *testing.T) {
	if got, want := Path("/tmp/x"), filepath.Join("/tmp/x", ".move-modules-cache"); got != want {
		t.Fatalf("path mismatch: got %s want %s", got, want)
	}
}

func TestOpenRejectsEmptyFolder(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error")
	}
}
