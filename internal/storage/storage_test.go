package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
)

func newTable(t *testing.T, src string) *bindings.Table {
	t.Helper()

	table, err := bindings.NewLoader().LoadSource(context.Background(), "inline.gin", []byte(src))
	if err != nil {
		t.Fatalf("LoadSource returned error: %v", err)
	}
	return table
}

func TestMemoryStoragePutGetDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	table := newTable(t, "GrowingNode.activation_limit = 0.5\n")

	if err := store.Put("experiment", table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get("experiment")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != table {
		t.Fatalf("expected stored table to be returned")
	}

	if err := store.Delete("experiment"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get("experiment"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound after delete, got %v", err)
	}
	if err := store.Delete("experiment"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound on second delete, got %v", err)
	}
}

func TestMemoryStorageRejectsInvalidNames(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	table := newTable(t, "a = 1\n")

	for _, name := range []string{"", "has space", "../escape", "slash/name"} {
		name := name
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			if err := store.Put(name, table); !errors.Is(err, ErrInvalidName) {
				t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
			}
			if _, err := store.Get(name); !errors.Is(err, ErrInvalidName) {
				t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
			}
		})
	}

	if err := store.Put("ok_name-1.v2", nil); err == nil {
		t.Fatalf("expected error for nil table")
	}
}

func TestMemoryStorageList(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if err := store.Put("zeta", newTable(t, "a = 1\nb = 2\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Put("alpha", newTable(t, "T.x = 1\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Summary{
		{Name: "alpha", Bindings: 1, Files: []string{"inline.gin"}},
		{Name: "zeta", Bindings: 2, Files: []string{"inline.gin"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	table := newTable(t, "a = 1\n")
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(offset int) {
			defer wg.Done()
			if err := store.Put(fmt.Sprintf("table-%d", offset%4), table); err != nil {
				t.Errorf("Put failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.List(); err != nil {
				t.Errorf("List failed: %v", err)
			}
		}()
	}

	wg.Wait()

	got, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 tables, got %d", len(got))
	}
}
