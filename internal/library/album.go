package library

import "fmt"

// Album is a collection of tracks and extras released together. Its natural
// key is (artist, title, year); the key doubles as the foreign-key target for
// owned tracks and extras, so it is immutable once persisted. Renames go
// through the store's explicit re-key operation.
type Album struct {
	Artist string
	Title  string
	Year   int

	Tracks []*Track
	Extras []*Extra

	path   string
	custom map[string]any
}

// NewAlbum creates an album rooted at the given directory.
func NewAlbum(artist, title string, year int, path string) *Album {
	return &Album{
		Artist: artist,
		Title:  title,
		Year:   year,
		path:   path,
		custom: make(map[string]any),
	}
}

func (a *Album) Kind() Kind { return KindAlbum }

func (a *Album) Path() string        { return a.path }
func (a *Album) SetPath(path string) { a.path = path }

func (a *Album) Fields() []string {
	return []string{"artist", "title", "year", "path"}
}

func (a *Album) Field(name string) (any, bool) {
	switch name {
	case "artist":
		return a.Artist, true
	case "title":
		return a.Title, true
	case "year":
		return a.Year, true
	case "path":
		return a.path, true
	}
	return getCustom(KindAlbum, a.custom, name)
}

func (a *Album) SetField(name string, value any) error {
	switch name {
	case "artist":
		return setString(KindAlbum, name, value, &a.Artist)
	case "title":
		return setString(KindAlbum, name, value, &a.Title)
	case "year":
		return setInt(KindAlbum, name, value, &a.Year)
	case "path":
		return setString(KindAlbum, name, value, &a.path)
	}
	return setCustom(KindAlbum, a.custom, name, value)
}

func (a *Album) Custom() map[string]any { return copyCustom(a.custom) }

// HasEqKey reports whether other carries the same natural key.
func (a *Album) HasEqKey(other *Album) bool {
	return other != nil &&
		a.Artist == other.Artist &&
		a.Title == other.Title &&
		a.Year == other.Year
}

// IsUnique reports whether the album can coexist with other in the same
// library. Albums collide on their natural key or on their path.
func (a *Album) IsUnique(other Item) bool {
	o, ok := other.(*Album)
	if !ok {
		return true
	}
	if o == a {
		return false
	}
	if a.HasEqKey(o) {
		return false
	}
	if a.path != "" && a.path == o.Path() {
		return false
	}
	return true
}

// Merge folds other's attributes into a. Existing values on a win unless
// overwrite is set; tracks and extras present on other but absent from a
// (by natural key) are re-parented onto a.
func (a *Album) Merge(other *Album, overwrite bool) {
	if other == nil {
		return
	}
	for name, v := range other.custom {
		if _, set := a.custom[name]; !set || overwrite {
			a.custom[name] = v
		}
	}
	if a.path == "" || overwrite {
		a.path = other.path
	}
	for _, t := range other.Tracks {
		if a.trackByNum(t.TrackNum) == nil {
			loc := t.Path()
			t.Album = a
			t.SetPath(loc) // keep the on-disk location across the re-parent
			a.Tracks = append(a.Tracks, t)
		}
	}
	for _, e := range other.Extras {
		if a.extraByName(e.Filename) == nil {
			loc := e.Path()
			e.Album = a
			e.SetPath(loc)
			a.Extras = append(a.Extras, e)
		}
	}
}

func (a *Album) trackByNum(num int) *Track {
	for _, t := range a.Tracks {
		if t.TrackNum == num {
			return t
		}
	}
	return nil
}

func (a *Album) extraByName(filename string) *Extra {
	for _, e := range a.Extras {
		if e.Filename == filename {
			return e
		}
	}
	return nil
}

func (a *Album) String() string {
	return fmt.Sprintf("%s - %s (%d)", a.Artist, a.Title, a.Year)
}

func setString(kind Kind, name string, value any, dst *string) error {
	s, ok := value.(string)
	if !ok {
		return &FieldError{Kind: kind, Field: name, Cause: fmt.Sprintf("want string, got %T", value)}
	}
	*dst = s
	return nil
}

func setInt(kind Kind, name string, value any, dst *int) error {
	n, ok := value.(int)
	if !ok {
		return &FieldError{Kind: kind, Field: name, Cause: fmt.Sprintf("want int, got %T", value)}
	}
	*dst = n
	return nil
}
