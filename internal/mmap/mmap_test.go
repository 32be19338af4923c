//go:build unix

package mmap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMapRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	content := []byte("the quick brown fox")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	m, err := Map(f.Fd(), len(content))
	if err != nil {
		t.Fatal(err)
	}
	m.AdviseSequential()

	if !bytes.Equal(m.Bytes(), content) {
		t.Fatalf("mapped %q", m.Bytes())
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if m.Bytes() != nil {
		t.Fatal("bytes after close")
	}
	if err := m.Close(); err != nil {
		t.Fatal("double close should be a no-op")
	}
}

func TestMapUnlinkedFile(t *testing.T) {
	// The spill file is unlinked right after creation; the mapping must
	// still work through the open descriptor.
	path := filepath.Join(t.TempDir(), "spill")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	content := []byte("staged postings")
	if _, err := f.Write(content); err != nil {
		t.Fatal(err)
	}

	m, err := Map(f.Fd(), len(content))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if !bytes.Equal(m.Bytes(), content) {
		t.Fatalf("mapped %q", m.Bytes())
	}
}
