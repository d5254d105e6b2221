// Package session tracks library items across a logical transaction and
// dispatches lifecycle hooks around the durable commit point.
//
// A flush runs in two phases. Before the durable write, pending items are
// classified into new, changed, and removed sets and the edit-class hooks
// run, free to mutate items in place. After the store reports a successful
// write, the process-class hooks run over the same classification; whatever
// they change is not persisted. A failure anywhere before the write aborts
// the flush and skips the post phase entirely.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/lgrenard/melo/internal/hook"
	"github.com/lgrenard/melo/internal/library"
)

// Lifecycle hook point names.
const (
	EditChangedItems    = "edit_changed_items"
	EditNewItems        = "edit_new_items"
	ProcessChangedItems = "process_changed_items"
	ProcessNewItems     = "process_new_items"
	ProcessRemovedItems = "process_removed_items"
)

// DeclareHooks adds the lifecycle hook points to a registry.
func DeclareHooks(r *hook.Registry) {
	r.Declare(EditChangedItems, hook.Edit, false)
	r.Declare(EditNewItems, hook.Edit, false)
	r.Declare(ProcessChangedItems, hook.Process, false)
	r.Declare(ProcessNewItems, hook.Process, false)
	r.Declare(ProcessRemovedItems, hook.Process, false)
}

// ChangedItem pairs a modified item with the attribute values it had after
// its last durable write, so the store can match rows whose key columns were
// part of the change.
type ChangedItem struct {
	Item  library.Item
	Prior map[string]any
}

// Change is the full batch handed to the store for one durable write.
type Change struct {
	New     []library.Item
	Changed []ChangedItem
	Removed []library.Item
}

func (c Change) empty() bool {
	return len(c.New) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Store is the opaque durable-write primitive. Persist must apply the whole
// change atomically: either every row lands or the error leaves the library
// untouched.
type Store interface {
	Persist(ctx context.Context, change Change) error
}

type tracked struct {
	item library.Item
	snap map[string]any
}

// Session is the unit of work for one logical library operation. It is not
// safe for concurrent use; callers serialize operations against a library.
type Session struct {
	store Store
	hooks *hook.Registry
	log   *slog.Logger

	pending []library.Item // new items awaiting their first durable write
	items   []tracked      // durably persisted items with their snapshots
	removed []library.Item // persisted items marked for deletion
}

func New(store Store, hooks *hook.Registry, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{store: store, hooks: hooks, log: log}
}

// Hooks returns the registry the session dispatches to.
func (s *Session) Hooks() *hook.Registry { return s.hooks }

// Add attaches a new item to the session. It stays classified as new until
// a flush durably writes it. Items the session already knows, pending or
// persisted, are left alone.
func (s *Session) Add(item library.Item) {
	for _, p := range s.pending {
		if p == item {
			return
		}
	}
	for _, t := range s.items {
		if t.item == item {
			return
		}
	}
	s.pending = append(s.pending, item)
}

// Track attaches an item loaded from the store, snapshotting its current
// values. Later in-place mutation classifies it as changed at the next
// flush.
func (s *Session) Track(item library.Item) {
	for _, t := range s.items {
		if t.item == item {
			return
		}
	}
	s.items = append(s.items, tracked{item: item, snap: library.Snapshot(item)})
}

// Delete marks a tracked item for removal at the next flush. Deleting a
// still-pending item just detaches it.
func (s *Session) Delete(item library.Item) {
	for i, p := range s.pending {
		if p == item {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
	for i, t := range s.items {
		if t.item == item {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.removed = append(s.removed, item)
			return
		}
	}
}

// Flush classifies the session's items, runs the edit hooks, performs the
// durable write, and runs the process hooks over the same classification.
// With nothing to write it is a no-op.
func (s *Session) Flush(ctx context.Context) error {
	change := s.classify()
	if change.empty() {
		return nil
	}

	changedItems := make([]library.Item, len(change.Changed))
	for i, c := range change.Changed {
		changedItems[i] = c.Item
	}

	// PRE-COMMIT: edit hooks may still mutate any item in the batch.
	if len(changedItems) > 0 {
		s.log.Debug("editing changed items", "count", len(changedItems))
		if err := s.hooks.Invoke(EditChangedItems, changedItems); err != nil {
			return err
		}
	}
	if len(change.New) > 0 {
		s.log.Debug("editing new items", "count", len(change.New))
		if err := s.hooks.Invoke(EditNewItems, change.New); err != nil {
			return err
		}
	}

	if err := s.store.Persist(ctx, change); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}

	// The write is durable from here on. Promote pending items and refresh
	// snapshots before the observe-only phase, so post-commit mutation is
	// classified on a later flush instead of being lost silently.
	for _, item := range change.New {
		s.items = append(s.items, tracked{item: item, snap: library.Snapshot(item)})
	}
	s.pending = nil
	for i := range s.items {
		s.items[i].snap = library.Snapshot(s.items[i].item)
	}
	s.removed = nil

	// POST-COMMIT: same classification snapshot, observe-only. Errors here
	// mean "stored but not fully reacted to".
	if len(changedItems) > 0 {
		s.log.Debug("processing changed items", "count", len(changedItems))
		if err := s.hooks.Invoke(ProcessChangedItems, changedItems); err != nil {
			return err
		}
	}
	if len(change.New) > 0 {
		s.log.Debug("processing new items", "count", len(change.New))
		if err := s.hooks.Invoke(ProcessNewItems, change.New); err != nil {
			return err
		}
	}
	if len(change.Removed) > 0 {
		s.log.Debug("processing removed items", "count", len(change.Removed))
		if err := s.hooks.Invoke(ProcessRemovedItems, change.Removed); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) classify() Change {
	var change Change
	change.New = append(change.New, s.pending...)
	for _, t := range s.items {
		if !reflect.DeepEqual(t.snap, library.Snapshot(t.item)) {
			change.Changed = append(change.Changed, ChangedItem{Item: t.item, Prior: t.snap})
		}
	}
	change.Removed = append(change.Removed, s.removed...)
	return change
}
