package badger

import (
	"bytes"
	"testing"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return b
}

func TestGetSetDelete(t *testing.T) {
	b := openTestBackend(t)

	if _, ok, err := b.Get("files", []byte("a")); err != nil || ok {
		t.Fatalf("Get() on empty bucket = ok=%v, err=%v; want absent", ok, err)
	}

	if err := b.Set("files", []byte("a"), []byte("hello")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := b.Get("files", []byte("a"))
	if err != nil || !ok || !bytes.Equal(v, []byte("hello")) {
		t.Fatalf("Get() = %q, ok=%v, err=%v; want hello", v, ok, err)
	}

	if err := b.Delete("files", []byte("a")); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := b.Get("files", []byte("a")); ok {
		t.Fatal("Get() after Delete = present, want absent")
	}
	// Deleting an absent key is not an error.
	if err := b.Delete("files", []byte("a")); err != nil {
		t.Fatalf("Delete() on absent key error = %v", err)
	}
}

func TestBucketIsolation(t *testing.T) {
	b := openTestBackend(t)

	if err := b.Set("files", []byte("k"), []byte("file")); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("files_index", []byte("k"), []byte("index")); err != nil {
		t.Fatal(err)
	}

	v, _, _ := b.Get("files", []byte("k"))
	if !bytes.Equal(v, []byte("file")) {
		t.Errorf("files/k = %q, want file", v)
	}
	v, _, _ = b.Get("files_index", []byte("k"))
	if !bytes.Equal(v, []byte("index")) {
		t.Errorf("files_index/k = %q, want index", v)
	}

	n, err := b.Len("files")
	if err != nil || n != 1 {
		t.Errorf("Len(files) = %d, err=%v; want 1", n, err)
	}
}

func TestScanOrder(t *testing.T) {
	b := openTestBackend(t)

	for _, k := range []string{"c", "a", "b"} {
		if err := b.Set("scan", []byte(k), []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	var keys []string
	err := b.Scan("scan", func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if i >= len(keys) || keys[i] != k {
			t.Fatalf("Scan() keys = %v, want %v", keys, want)
		}
	}
}

func TestClear(t *testing.T) {
	b := openTestBackend(t)

	for _, k := range []string{"a", "b", "c"} {
		if err := b.Set("clear", []byte(k), []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Set("keep", []byte("x"), []byte("x")); err != nil {
		t.Fatal(err)
	}

	if err := b.Clear("clear"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := b.Len("clear"); n != 0 {
		t.Errorf("Len(clear) after Clear = %d, want 0", n)
	}
	if n, _ := b.Len("keep"); n != 1 {
		t.Errorf("Len(keep) = %d, want 1; Clear must not cross buckets", n)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Set("files", []byte("id"), []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b, err = Open(Config{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	v, ok, err := b.Get("files", []byte("id"))
	if err != nil || !ok || !bytes.Equal(v, []byte("payload")) {
		t.Fatalf("Get() after reopen = %q, ok=%v, err=%v; want payload", v, ok, err)
	}
}
