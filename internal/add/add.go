// Package add brings new items into the library: single files as tracks,
// directories as whole albums. Files whose tags cannot be read become extra
// files of the album instead of failing the add.
package add

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lgrenard/melo/internal/db"
	"github.com/lgrenard/melo/internal/hook"
	"github.com/lgrenard/melo/internal/library"
	"github.com/lgrenard/melo/internal/session"
	"github.com/lgrenard/melo/internal/tags"
)

// PreAdd is the hook point fired for an item before it is attached to the
// session. Edit class: implementations may alter the item, or return
// ErrAbort to cancel the add before anything is written.
const PreAdd = "pre_add"

// DeclareHooks adds the add pipeline's hook points to a registry.
func DeclareHooks(r *hook.Registry) {
	r.Declare(PreAdd, hook.Edit, false)
}

// ErrAbort cancels an in-progress add voluntarily, e.g. from an interactive
// conflict-resolution hook. Distinct from a constraint failure: no write has
// occurred.
var ErrAbort = errors.New("add aborted")

// Error is an add failure. Item is set when a specific item caused the
// failure (duplicate key or path); Path is set for structural failures of a
// whole input directory.
type Error struct {
	Item library.Item
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Item != nil:
		return fmt.Sprintf("cannot add %s: %v", e.Item, e.Err)
	case e.Path != "":
		return fmt.Sprintf("cannot add %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cannot add item: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReadFunc converts a music file into tag metadata. Returning an error marks
// the file as not-a-track.
type ReadFunc func(path string) (*tags.Tag, error)

// AlbumFinder looks up an already-persisted album by natural key.
// *db.Store satisfies it.
type AlbumFinder interface {
	AlbumByKey(ctx context.Context, artist, title string, year int) (*library.Album, error)
}

// Adder is the add pipeline.
type Adder struct {
	session *session.Session
	finder  AlbumFinder
	read    ReadFunc
	log     *slog.Logger
}

func New(s *session.Session, finder AlbumFinder, read ReadFunc, log *slog.Logger) *Adder {
	if read == nil {
		read = tags.Read
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adder{session: s, finder: finder, read: read, log: log}
}

// AddItem runs the pre_add hook on item, attaches it (and its album graph)
// to the session, and flushes. Constraint violations surface as an *Error
// naming the item; a hook returning ErrAbort cancels before any write.
func (a *Adder) AddItem(ctx context.Context, item library.Item) error {
	a.log.Debug("adding item to the library", "item", item.String())

	if err := a.session.Hooks().Invoke(PreAdd, []library.Item{item}); err != nil {
		if errors.Is(err, ErrAbort) {
			return err
		}
		return &Error{Item: item, Err: err}
	}

	a.attach(item)

	if err := a.session.Flush(ctx); err != nil {
		if errors.Is(err, db.ErrConstraint) {
			return &Error{Item: item, Err: err}
		}
		return err
	}

	a.log.Info("item added to the library", "item", item.String())
	return nil
}

// attach adds the item's whole album graph so hook batches and the store see
// every entity involved, with albums ahead of their children.
func (a *Adder) attach(item library.Item) {
	var album *library.Album
	switch it := item.(type) {
	case *library.Album:
		album = it
	case *library.Track:
		album = it.Album
	case *library.Extra:
		album = it.Album
	default:
		panic(fmt.Sprintf("add: unsupported item kind %s", item.Kind()))
	}

	a.session.Add(album)
	for _, track := range album.Tracks {
		a.session.Add(track)
	}
	for _, extra := range album.Extras {
		a.session.Add(extra)
	}
}

// AddPath adds whatever lives at path: a single music file as a track, a
// directory as an album. The added item is returned.
func (a *Adder) AddPath(ctx context.Context, path string) (library.Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	var item library.Item
	if info.IsDir() {
		album, err := a.albumFromDir(path)
		if err != nil {
			return nil, err
		}
		album, err = a.mergeExisting(ctx, album)
		if err != nil {
			return nil, err
		}
		item = album
	} else {
		track, err := a.trackFromFile(path)
		if err != nil {
			return nil, err
		}
		merged, err := a.mergeExisting(ctx, track.Album)
		if err != nil {
			return nil, err
		}
		// The track may have been re-parented onto the persisted album.
		item = merged.Tracks[len(merged.Tracks)-1]
		for _, t := range merged.Tracks {
			if t.TrackNum == track.TrackNum {
				item = t
				break
			}
		}
	}

	if err := a.AddItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// mergeExisting merges album against any persisted album with the same
// natural key. Persisted values win; the persisted album becomes the item
// the rest of the pipeline works with.
func (a *Adder) mergeExisting(ctx context.Context, album *library.Album) (*library.Album, error) {
	if a.finder == nil {
		return album, nil
	}
	existing, err := a.finder.AlbumByKey(ctx, album.Artist, album.Title, album.Year)
	if err != nil {
		return nil, fmt.Errorf("look up existing album: %w", err)
	}
	if existing == nil {
		return album, nil
	}

	a.log.Debug("merging with existing album", "album", existing.String())
	a.session.Track(existing)
	for _, track := range existing.Tracks {
		a.session.Track(track)
	}
	for _, extra := range existing.Extras {
		a.session.Track(extra)
	}
	existing.Merge(album, false)
	return existing, nil
}

// albumFromDir builds an album from every readable music file under dir.
// Files without a music extension, and music files whose tags cannot be
// read, become extras. All tracks must agree on the album's natural key or
// the whole directory is rejected.
func (a *Adder) albumFromDir(dir string) (*library.Album, error) {
	var trackTags []*tags.Tag
	var extraPaths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !tags.IsMusicFile(path) {
			extraPaths = append(extraPaths, path)
			return nil
		}
		t, readErr := a.read(path)
		if readErr != nil || t == nil {
			a.log.Debug("file is not a readable track, treating as extra",
				"path", path)
			extraPaths = append(extraPaths, path)
			return nil
		}
		trackTags = append(trackTags, t)
		return nil
	})
	if err != nil {
		return nil, &Error{Path: dir, Err: err}
	}

	if len(trackTags) == 0 {
		return nil, &Error{Path: dir, Err: errors.New("no tracks found")}
	}

	first := trackTags[0]
	album := library.NewAlbum(first.AlbumArtist, first.Album, first.Year, dir)
	for _, t := range trackTags {
		if t.AlbumArtist != album.Artist || t.Album != album.Title || t.Year != album.Year {
			return nil, &Error{Path: dir, Err: fmt.Errorf(
				"not all tracks share the same album attributes: %q has (%s, %s, %d), want (%s, %s, %d)",
				t.Path, t.AlbumArtist, t.Album, t.Year, album.Artist, album.Title, album.Year)}
		}
		rel, relErr := filepath.Rel(dir, t.Path)
		if relErr != nil {
			rel = filepath.Base(t.Path)
		}
		track := library.NewTrack(album, t.TrackNumber, t.Artist, t.Title, rel)
		if t.Genre != "" {
			track.Genres = []string{t.Genre}
		}
	}

	for _, p := range extraPaths {
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			rel = filepath.Base(p)
		}
		library.NewExtra(album, rel)
	}
	return album, nil
}

// trackFromFile builds a track (and its in-memory album) from one music
// file's tags.
func (a *Adder) trackFromFile(path string) (*library.Track, error) {
	t, err := a.read(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	album := library.NewAlbum(t.AlbumArtist, t.Album, t.Year, filepath.Dir(path))
	track := library.NewTrack(album, t.TrackNumber, t.Artist, t.Title, filepath.Base(path))
	if t.Genre != "" {
		track.Genres = []string{t.Genre}
	}
	return track, nil
}
