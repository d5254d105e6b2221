// Package move places library items on disk according to configurable path
// templates. It registers itself as a post-commit hook so newly persisted
// items are laid out under the library root; the resulting path changes are
// picked up by the caller's next flush.
package move

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lgrenard/melo/internal/hook"
	"github.com/lgrenard/melo/internal/library"
	"github.com/lgrenard/melo/internal/session"
)

// Default path templates, relative to the library root for albums and to the
// album directory for tracks and extras.
const (
	DefaultAlbumPath = "{album.artist}/{album.title} ({album.year})"
	DefaultTrackPath = "{track.track_num:02} - {track.title}{track.file_ext}"
	DefaultExtraPath = "{extra.filename}"
)

// Config controls where items are placed.
type Config struct {
	// LibraryPath is the root directory all albums live under.
	LibraryPath string

	AlbumPath string
	TrackPath string
	ExtraPath string

	// AsciifyPaths folds non-ASCII characters in generated paths to their
	// closest ASCII equivalent.
	AsciifyPaths bool
}

// Mover formats item paths and copies or moves the underlying files.
type Mover struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Mover {
	if cfg.AlbumPath == "" {
		cfg.AlbumPath = DefaultAlbumPath
	}
	if cfg.TrackPath == "" {
		cfg.TrackPath = DefaultTrackPath
	}
	if cfg.ExtraPath == "" {
		cfg.ExtraPath = DefaultExtraPath
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mover{cfg: cfg, log: log}
}

// RegisterHooks attaches the mover to the post-commit new-item point. It runs
// last so other handlers observe items before their files move.
func (m *Mover) RegisterHooks(r *hook.Registry) error {
	return r.Register(session.ProcessNewItems, hook.Last, func(items []library.Item) error {
		for _, item := range items {
			if err := m.CopyItem(item); err != nil {
				return fmt.Errorf("copy %s into library: %w", item, err)
			}
		}
		return nil
	})
}

// FmtItemPath renders the configured destination for an item. Albums resolve
// against the library root; tracks and extras resolve against their album's
// current path, so albums must be placed first.
func (m *Mover) FmtItemPath(item library.Item) (string, error) {
	var base, template string
	switch it := item.(type) {
	case *library.Album:
		base, template = m.cfg.LibraryPath, m.cfg.AlbumPath
	case *library.Track:
		base, template = it.Album.Path(), m.cfg.TrackPath
	case *library.Extra:
		base, template = it.Album.Path(), m.cfg.ExtraPath
	default:
		panic(fmt.Sprintf("move: unsupported item kind %s", item.Kind()))
	}

	rel, err := m.evalPath(template, item)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, rel), nil
}

// evalPath evaluates a /-delimited template, sanitizing each resulting
// segment. Segments that evaluate to nothing are dropped, which is how
// conditional segments disappear.
func (m *Mover) evalPath(template string, item library.Item) (string, error) {
	var parts []string
	for _, segment := range strings.Split(template, "/") {
		resolved, err := evalSegment(segment, item)
		if err != nil {
			return "", err
		}
		if m.cfg.AsciifyPaths {
			resolved = asciiFold(resolved)
		}
		if resolved = sanitizeSegment(resolved); resolved != "" {
			parts = append(parts, resolved)
		}
	}
	return filepath.Join(parts...), nil
}

// CopyItem copies the item's files to their configured destination, updating
// item paths in memory. Files already in place are left alone.
func (m *Mover) CopyItem(item library.Item) error {
	return m.placeItem(item, false)
}

// MoveItem is CopyItem but relocates the files and prunes directories the
// move left empty.
func (m *Mover) MoveItem(item library.Item) error {
	return m.placeItem(item, true)
}

func (m *Mover) placeItem(item library.Item, remove bool) error {
	if album, ok := item.(*library.Album); ok {
		return m.placeAlbum(album, remove)
	}
	return m.placeFile(item, remove)
}

func (m *Mover) placeAlbum(album *library.Album, remove bool) error {
	dest, err := m.FmtItemPath(album)
	if err != nil {
		return err
	}
	oldPath := album.Path()

	// Children derive their paths from the album, so capture their current
	// locations before repointing it.
	sources := make(map[library.Item]string)
	for _, t := range album.Tracks {
		sources[t] = t.Path()
	}
	for _, e := range album.Extras {
		sources[e] = e.Path()
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	album.SetPath(dest)

	for _, t := range album.Tracks {
		if err := m.placeFileFrom(t, sources[t], remove); err != nil {
			return err
		}
	}
	for _, e := range album.Extras {
		if err := m.placeFileFrom(e, sources[e], remove); err != nil {
			return err
		}
	}

	if remove && oldPath != "" && oldPath != dest {
		m.pruneEmptyDirs(oldPath)
	}
	m.log.Debug("placed album", "album", album.String(), "path", dest)
	return nil
}

func (m *Mover) placeFile(item library.Item, remove bool) error {
	return m.placeFileFrom(item, item.Path(), remove)
}

func (m *Mover) placeFileFrom(item library.Item, src string, remove bool) error {
	dest, err := m.FmtItemPath(item)
	if err != nil {
		return err
	}
	if dest == src {
		item.SetPath(dest)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if remove {
		err = moveFile(src, dest)
	} else {
		err = copyFile(src, dest)
	}
	if err != nil {
		return err
	}
	item.SetPath(dest)

	if remove {
		m.pruneEmptyDirs(filepath.Dir(src))
	}
	return nil
}

// pruneEmptyDirs removes dir's now-empty subtree and any empty ancestors,
// stopping at the library root. Removal errors mean a directory still has
// content and are ignored.
func (m *Mover) pruneEmptyDirs(dir string) {
	root := m.cfg.LibraryPath

	var subdirs []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			subdirs = append(subdirs, p)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(subdirs)))
	for _, d := range subdirs {
		_ = os.Remove(d)
	}

	for p := filepath.Dir(dir); p != root && p != string(filepath.Separator) && p != "."; p = filepath.Dir(p) {
		if os.Remove(p) != nil {
			return
		}
	}
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	return dstFile.Close()
}

// moveFile renames when the destination is on the same filesystem, otherwise
// copies and deletes.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
