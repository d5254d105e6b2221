// Package library defines the entities stored in a melo library: albums,
// their tracks, and any extra (non-music) files that live alongside them.
// Every entity implements Item, the contract the session dispatcher and the
// hook system operate on.
package library

import "fmt"

// Kind identifies an Item variant. Consumers switch on Kind (or on the
// concrete type) and must treat an unknown kind as a programming error.
type Kind int

const (
	KindAlbum Kind = iota
	KindTrack
	KindExtra
)

func (k Kind) String() string {
	switch k {
	case KindAlbum:
		return "album"
	case KindTrack:
		return "track"
	case KindExtra:
		return "extra"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Item is implemented by any entity participating in the library lifecycle.
type Item interface {
	Kind() Kind

	// Path is the item's filesystem location. Track and Extra paths resolve
	// relative to their owning album's directory.
	Path() string
	SetPath(path string)

	// Fields returns the ordered public attribute names of the item, used by
	// plugins for generic editing and printing.
	Fields() []string

	// Field returns the named public or custom field value. The second
	// return is false for unknown names.
	Field(name string) (any, bool)

	// SetField sets a public or whitelisted custom field. Unknown names and
	// type mismatches return a *FieldError.
	SetField(name string, value any) error

	// Custom returns a copy of the item's set custom fields.
	Custom() map[string]any

	// IsUnique reports whether the item's natural key is distinct from
	// other's. Two items with equal natural keys cannot coexist.
	IsUnique(other Item) bool

	fmt.Stringer
}

// FieldError indicates an access to a field an item does not have, or a
// value of the wrong type for it.
type FieldError struct {
	Kind  Kind
	Field string
	Cause string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s has no field %q: %s", e.Kind, e.Field, e.Cause)
}

// customFields is the per-kind whitelist of allowed custom field names.
// Plugins extend it at startup before any items are constructed.
var customFields = map[Kind]map[string]struct{}{
	KindAlbum: {},
	KindTrack: {},
	KindExtra: {},
}

// RegisterCustomField allows the named custom field on items of the given
// kind.
func RegisterCustomField(kind Kind, name string) {
	customFields[kind][name] = struct{}{}
}

func customAllowed(kind Kind, name string) bool {
	_, ok := customFields[kind][name]
	return ok
}

func getCustom(kind Kind, bag map[string]any, name string) (any, bool) {
	if !customAllowed(kind, name) {
		return nil, false
	}
	return bag[name], true
}

func setCustom(kind Kind, bag map[string]any, name string, value any) error {
	if !customAllowed(kind, name) {
		return &FieldError{Kind: kind, Field: name, Cause: "not a registered custom field"}
	}
	bag[name] = value
	return nil
}

func copyCustom(bag map[string]any) map[string]any {
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		out[k] = v
	}
	return out
}

// Snapshot captures the current value of every tracked attribute of an item,
// public fields and custom fields alike. The session compares snapshots to
// detect in-place changes between flushes.
func Snapshot(it Item) map[string]any {
	snap := make(map[string]any)
	for _, name := range it.Fields() {
		if v, ok := it.Field(name); ok {
			snap[name] = v
		}
	}
	for name, v := range it.Custom() {
		snap[name] = v
	}
	return snap
}
