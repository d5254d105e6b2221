package session

import (
	"context"
	"errors"
	"testing"

	"github.com/lgrenard/melo/internal/hook"
	"github.com/lgrenard/melo/internal/library"
)

// fakeStore records every change batch it is asked to persist.
type fakeStore struct {
	changes []Change
	err     error
}

func (f *fakeStore) Persist(_ context.Context, change Change) error {
	if f.err != nil {
		return f.err
	}
	f.changes = append(f.changes, change)
	return nil
}

func newTestSession(store Store) *Session {
	r := hook.NewRegistry()
	DeclareHooks(r)
	return New(store, r, nil)
}

func TestFlushClassifiesNewItems(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	album := library.NewAlbum("Artist", "Album", 2020, "/music/a")
	s.Add(album)

	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(store.changes) != 1 {
		t.Fatalf("persist calls = %d, want 1", len(store.changes))
	}
	c := store.changes[0]
	if len(c.New) != 1 || c.New[0] != library.Item(album) {
		t.Fatalf("New = %v", c.New)
	}
	if len(c.Changed) != 0 || len(c.Removed) != 0 {
		t.Fatalf("unexpected changed/removed: %v / %v", c.Changed, c.Removed)
	}
}

func TestFlushClassifiesChangedItems(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	album := library.NewAlbum("Artist", "Album", 2020, "/music/a")
	s.Add(album)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Unchanged: second flush is a no-op.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.changes) != 1 {
		t.Fatalf("no-op flush persisted: %d calls", len(store.changes))
	}

	album.SetPath("/music/b")
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.changes) != 2 {
		t.Fatalf("persist calls = %d, want 2", len(store.changes))
	}
	c := store.changes[1]
	if len(c.Changed) != 1 || c.Changed[0].Item != library.Item(album) {
		t.Fatalf("Changed = %v", c.Changed)
	}
	if prior := c.Changed[0].Prior["path"]; prior != "/music/a" {
		t.Errorf("Prior[path] = %v, want /music/a", prior)
	}
}

func TestFlushClassifiesRemovedItems(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	album := library.NewAlbum("Artist", "Album", 2020, "/music/a")
	s.Add(album)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.Delete(album)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := store.changes[1]
	if len(c.Removed) != 1 || c.Removed[0] != library.Item(album) {
		t.Fatalf("Removed = %v", c.Removed)
	}

	// Removed items are gone; another flush has nothing to do.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.changes) != 2 {
		t.Fatalf("persist calls = %d, want 2", len(store.changes))
	}
}

func TestDeletePendingItemDetaches(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	album := library.NewAlbum("Artist", "Album", 2020, "/music/a")
	s.Add(album)
	s.Delete(album)

	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.changes) != 0 {
		t.Error("deleting a pending item should not reach the store")
	}
}

func TestHookPhaseOrdering(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	var phases []string
	mustRegister := func(name string, fn hook.Func) {
		t.Helper()
		if err := s.Hooks().Register(name, hook.Normal, fn); err != nil {
			t.Fatal(err)
		}
	}
	record := func(name string) hook.Func {
		return func([]library.Item) error {
			phases = append(phases, name)
			return nil
		}
	}
	mustRegister(EditChangedItems, record("edit_changed"))
	mustRegister(EditNewItems, record("edit_new"))
	mustRegister(ProcessChangedItems, record("process_changed"))
	mustRegister(ProcessNewItems, record("process_new"))
	mustRegister(ProcessRemovedItems, record("process_removed"))

	persisted := library.NewAlbum("Old", "Old", 2000, "/music/old")
	s.Add(persisted)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	phases = nil

	persisted.Year = 2001
	s.Add(library.NewAlbum("New", "New", 2020, "/music/new"))
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"edit_changed", "edit_new", "process_changed", "process_new"}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", phases, want)
		}
	}
}

func TestEditHookMutationIsPersisted(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	err := s.Hooks().Register(EditNewItems, hook.Normal, func(items []library.Item) error {
		for _, it := range items {
			if a, ok := it.(*library.Album); ok {
				a.Title = "Edited"
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	album := library.NewAlbum("Artist", "Album", 2020, "/music/a")
	s.Add(album)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if album.Title != "Edited" {
		t.Errorf("Title = %q, want Edited", album.Title)
	}

	// The post-write snapshot includes the edit, so nothing re-flushes.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.changes) != 1 {
		t.Errorf("persist calls = %d, want 1", len(store.changes))
	}
}

func TestEditHookErrorAbortsBeforeWrite(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	boom := errors.New("boom")
	_ = s.Hooks().Register(EditNewItems, hook.Normal, func([]library.Item) error { return boom })

	var processed bool
	_ = s.Hooks().Register(ProcessNewItems, hook.Normal, func([]library.Item) error {
		processed = true
		return nil
	})

	s.Add(library.NewAlbum("Artist", "Album", 2020, "/music/a"))
	err := s.Flush(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(store.changes) != 0 {
		t.Error("store was written despite pre-commit abort")
	}
	if processed {
		t.Error("post-commit hook ran after aborted write")
	}
}

func TestPersistErrorSkipsPostCommit(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	s := newTestSession(store)

	var processed bool
	_ = s.Hooks().Register(ProcessNewItems, hook.Normal, func([]library.Item) error {
		processed = true
		return nil
	})

	album := library.NewAlbum("Artist", "Album", 2020, "/music/a")
	s.Add(album)
	if err := s.Flush(context.Background()); err == nil {
		t.Fatal("expected persist error")
	}
	if processed {
		t.Error("post-commit hook ran after failed write")
	}

	// The item is still pending; a later flush retries it.
	store.err = nil
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.changes) != 1 || len(store.changes[0].New) != 1 {
		t.Fatalf("retry did not persist the pending item: %+v", store.changes)
	}
}

func TestPostCommitErrorAfterDurableWrite(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(store)

	boom := errors.New("indexer down")
	_ = s.Hooks().Register(ProcessNewItems, hook.Normal, func([]library.Item) error { return boom })

	s.Add(library.NewAlbum("Artist", "Album", 2020, "/music/a"))
	err := s.Flush(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	// Stored but not fully reacted to: the write happened.
	if len(store.changes) != 1 {
		t.Errorf("persist calls = %d, want 1", len(store.changes))
	}
}
