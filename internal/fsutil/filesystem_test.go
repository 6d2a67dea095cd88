package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestMemoryFileSystem_CreateReadFile(t *testing.T) {
	m := NewMemoryFileSystem()
	w, err := m.Create("plots/run.png")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("png")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := m.ReadFile("plots/run.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("file visible before Close: err = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := m.ReadFile("plots/./run.png")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("data = %q, want %q", data, "png")
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("write after close: err = %v, want ErrClosed", err)
	}
	if got := m.Files(); len(got) != 1 || got[0] != filepath.Clean("plots/run.png") {
		t.Errorf("Files() = %v", got)
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("out/a/b", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"out", "out/a", "out/a/b"} {
		if !m.IsDir(d) {
			t.Errorf("IsDir(%q) = false", d)
		}
	}
	if m.IsDir("other") {
		t.Error("IsDir(other) = true")
	}
}

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	w, err := fsys.Create(filepath.Join(dir, "x.txt"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := fsys.ReadFile(filepath.Join(dir, "x.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}
