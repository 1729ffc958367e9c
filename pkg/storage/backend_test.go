package storage

import (
	"bytes"
	"errors"
	"testing"
)

// backendTestSuite runs the same checks against any Backend implementation
func backendTestSuite(t *testing.T, newBackend func() (Backend, func(), error)) {
	open := func(t *testing.T) Backend {
		t.Helper()
		backend, cleanup, err := newBackend()
		if err != nil {
			t.Fatalf("failed to create backend: %v", err)
		}
		t.Cleanup(cleanup)
		return backend
	}

	t.Run("CreateBucketIdempotent", func(t *testing.T) {
		backend := open(t)

		for i := 0; i < 2; i++ {
			if err := backend.CreateBucket([]byte("items")); err != nil {
				t.Fatalf("CreateBucket #%d failed: %v", i+1, err)
			}
		}
		exists, err := backend.BucketExists([]byte("items"))
		if err != nil || !exists {
			t.Errorf("BucketExists = %v, %v; want true, nil", exists, err)
		}
	})

	t.Run("DeleteBucketIdempotent", func(t *testing.T) {
		backend := open(t)

		backend.CreateBucket([]byte("items"))
		for i := 0; i < 2; i++ {
			if err := backend.DeleteBucket([]byte("items")); err != nil {
				t.Fatalf("DeleteBucket #%d failed: %v", i+1, err)
			}
		}
		if exists, _ := backend.BucketExists([]byte("items")); exists {
			t.Error("bucket should not exist after deletion")
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		backend := open(t)
		backend.CreateBucket([]byte("items"))

		value := []byte(`{"line":"user_1 did login"}`)
		if err := backend.Put([]byte("items"), IndexKey(3), value); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := backend.Get([]byte("items"), IndexKey(3))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, value) {
			t.Errorf("Get returned %s, want %s", got, value)
		}

		// Returned slices belong to the caller.
		got[0] = 'X'
		again, _ := backend.Get([]byte("items"), IndexKey(3))
		if !bytes.Equal(again, value) {
			t.Error("mutating a returned value changed the stored value")
		}
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		backend := open(t)
		backend.CreateBucket([]byte("items"))

		got, err := backend.Get([]byte("items"), IndexKey(99))
		if err != nil || got != nil {
			t.Errorf("Get(missing) = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("MissingBucket", func(t *testing.T) {
		backend := open(t)

		if err := backend.Put([]byte("nope"), []byte("k"), []byte("v")); !errors.Is(err, ErrBucketNotFound) {
			t.Errorf("Put err = %v, want ErrBucketNotFound", err)
		}
		if _, err := backend.Get([]byte("nope"), []byte("k")); !errors.Is(err, ErrBucketNotFound) {
			t.Errorf("Get err = %v, want ErrBucketNotFound", err)
		}
		if _, err := backend.Count([]byte("nope")); !errors.Is(err, ErrBucketNotFound) {
			t.Errorf("Count err = %v, want ErrBucketNotFound", err)
		}
	})

	t.Run("ForEachInIndexOrder", func(t *testing.T) {
		backend := open(t)
		backend.CreateBucket([]byte("items"))

		for _, idx := range []int{7, 0, 300, 2, 256} {
			backend.Put([]byte("items"), IndexKey(idx), []byte("x"))
		}

		var order []int
		err := backend.ForEach([]byte("items"), func(k, v []byte) error {
			idx, err := KeyIndex(k)
			order = append(order, idx)
			return err
		})
		if err != nil {
			t.Fatalf("ForEach failed: %v", err)
		}

		want := []int{0, 2, 7, 256, 300}
		if len(order) != len(want) {
			t.Fatalf("visited %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("visited %v, want %v", order, want)
			}
		}

		n, err := backend.Count([]byte("items"))
		if err != nil || n != 5 {
			t.Errorf("Count = %d, %v; want 5, nil", n, err)
		}
	})

	t.Run("ForEachStopsOnError", func(t *testing.T) {
		backend := open(t)
		backend.CreateBucket([]byte("items"))
		backend.Put([]byte("items"), IndexKey(0), []byte("a"))
		backend.Put([]byte("items"), IndexKey(1), []byte("b"))

		stop := errors.New("stop")
		visits := 0
		err := backend.ForEach([]byte("items"), func(k, v []byte) error {
			visits++
			return stop
		})
		if !errors.Is(err, stop) || visits != 1 {
			t.Errorf("ForEach = %v after %d visits; want stop after 1", err, visits)
		}
	})
}

func TestIndexKeyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, idx := range []int{0, 1, 255, 256, 1 << 40} {
		got, err := KeyIndex(IndexKey(idx))
		if err != nil || got != idx {
			t.Errorf("KeyIndex(IndexKey(%d)) = %d, %v", idx, got, err)
		}
	}

	if _, err := KeyIndex([]byte("short")); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	b, err := Open(KindBbolt, dir+"/nested/items.db")
	if err != nil {
		t.Fatalf("Open(bbolt): %v", err)
	}
	if _, ok := b.(*BboltBackend); !ok {
		t.Errorf("Open(bbolt) returned %T", b)
	}
	b.Close()

	m, err := Open(KindMemory, "")
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := m.(*MemoryBackend); !ok {
		t.Errorf("Open(memory) returned %T", m)
	}

	if _, err := Open("redis", ""); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(redis) err = %v, want ErrUnknownBackend", err)
	}
}
