package library

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Extra is a non-music file owned by an album: cover art, logs, cue sheets.
// Its natural key is (filename, owning album key). Filename is relative to
// the album directory.
type Extra struct {
	Album    *Album
	Filename string

	pathOverride string
	custom       map[string]any
}

// NewExtra creates an extra under album and links it into album.Extras.
func NewExtra(album *Album, filename string) *Extra {
	e := &Extra{
		Album:    album,
		Filename: filename,
		custom:   make(map[string]any),
	}
	album.Extras = append(album.Extras, e)
	return e
}

func (e *Extra) Kind() Kind { return KindExtra }

func (e *Extra) Path() string {
	if e.pathOverride != "" {
		return e.pathOverride
	}
	return filepath.Join(e.Album.Path(), e.Filename)
}

func (e *Extra) SetPath(path string) {
	if rel, err := filepath.Rel(e.Album.Path(), path); err == nil && !strings.HasPrefix(rel, "..") {
		e.Filename = rel
		e.pathOverride = ""
	} else {
		e.pathOverride = path
	}
}

func (e *Extra) Fields() []string {
	return []string{"filename", "path"}
}

func (e *Extra) Field(name string) (any, bool) {
	switch name {
	case "filename":
		return e.Filename, true
	case "path":
		return e.Path(), true
	}
	return getCustom(KindExtra, e.custom, name)
}

func (e *Extra) SetField(name string, value any) error {
	switch name {
	case "filename":
		return setString(KindExtra, name, value, &e.Filename)
	case "path":
		s, ok := value.(string)
		if !ok {
			return &FieldError{Kind: KindExtra, Field: name, Cause: fmt.Sprintf("want string, got %T", value)}
		}
		e.SetPath(s)
		return nil
	}
	return setCustom(KindExtra, e.custom, name, value)
}

func (e *Extra) Custom() map[string]any { return copyCustom(e.custom) }

// IsUnique reports whether the extra's natural key is distinct from other's.
func (e *Extra) IsUnique(other Item) bool {
	o, ok := other.(*Extra)
	if !ok {
		return true
	}
	if o == e {
		return false
	}
	return e.Filename != o.Filename || !e.Album.HasEqKey(o.Album)
}

func (e *Extra) String() string {
	return fmt.Sprintf("%s (extra of %s)", e.Filename, e.Album)
}
