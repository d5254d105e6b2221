package library

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Track is a single music file belonging to exactly one album. Its natural
// key is (track_num, owning album key). Filename is stored relative to the
// album directory, so a track follows its album when the album moves.
type Track struct {
	Album *Album

	TrackNum int
	Artist   string
	Title    string
	FileExt  string
	Filename string

	// Genres is the track's tag associations. Empty names are skipped at
	// persist time.
	Genres []string

	// pathOverride holds a location outside the album directory. Normally
	// empty.
	pathOverride string

	custom map[string]any
}

// NewTrack creates a track under album and links it into album.Tracks.
func NewTrack(album *Album, trackNum int, artist, title, filename string) *Track {
	t := &Track{
		Album:    album,
		TrackNum: trackNum,
		Artist:   artist,
		Title:    title,
		FileExt:  filepath.Ext(filename),
		Filename: filename,
		custom:   make(map[string]any),
	}
	album.Tracks = append(album.Tracks, t)
	return t
}

func (t *Track) Kind() Kind { return KindTrack }

func (t *Track) Path() string {
	if t.pathOverride != "" {
		return t.pathOverride
	}
	return filepath.Join(t.Album.Path(), t.Filename)
}

// SetPath places the track at path. Locations under the album directory are
// stored relative to it; anything else is kept verbatim.
func (t *Track) SetPath(path string) {
	if rel, err := filepath.Rel(t.Album.Path(), path); err == nil && !strings.HasPrefix(rel, "..") {
		t.Filename = rel
		t.pathOverride = ""
	} else {
		t.pathOverride = path
	}
	t.FileExt = filepath.Ext(path)
}

func (t *Track) Fields() []string {
	return []string{"track_num", "artist", "title", "genres", "file_ext", "filename", "path"}
}

func (t *Track) Field(name string) (any, bool) {
	switch name {
	case "track_num":
		return t.TrackNum, true
	case "artist":
		return t.Artist, true
	case "title":
		return t.Title, true
	case "genres":
		return strings.Join(t.Genres, "; "), true
	case "file_ext":
		return t.FileExt, true
	case "filename":
		return t.Filename, true
	case "path":
		return t.Path(), true
	}
	return getCustom(KindTrack, t.custom, name)
}

func (t *Track) SetField(name string, value any) error {
	switch name {
	case "track_num":
		return setInt(KindTrack, name, value, &t.TrackNum)
	case "artist":
		return setString(KindTrack, name, value, &t.Artist)
	case "title":
		return setString(KindTrack, name, value, &t.Title)
	case "genres":
		s, ok := value.(string)
		if !ok {
			return &FieldError{Kind: KindTrack, Field: name, Cause: fmt.Sprintf("want string, got %T", value)}
		}
		t.Genres = splitGenres(s)
		return nil
	case "file_ext":
		return setString(KindTrack, name, value, &t.FileExt)
	case "filename":
		return setString(KindTrack, name, value, &t.Filename)
	case "path":
		s, ok := value.(string)
		if !ok {
			return &FieldError{Kind: KindTrack, Field: name, Cause: fmt.Sprintf("want string, got %T", value)}
		}
		t.SetPath(s)
		return nil
	}
	return setCustom(KindTrack, t.custom, name, value)
}

func (t *Track) Custom() map[string]any { return copyCustom(t.custom) }

// IsUnique reports whether the track's natural key is distinct from other's.
func (t *Track) IsUnique(other Item) bool {
	o, ok := other.(*Track)
	if !ok {
		return true
	}
	if o == t {
		return false
	}
	return t.TrackNum != o.TrackNum || !t.Album.HasEqKey(o.Album)
}

func splitGenres(s string) []string {
	var genres []string
	for _, g := range strings.Split(s, ";") {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

func (t *Track) String() string {
	return fmt.Sprintf("%s - %s (track %d of %s)", t.Artist, t.Title, t.TrackNum, t.Album)
}
