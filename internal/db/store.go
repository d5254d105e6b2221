package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lgrenard/melo/internal/library"
	"github.com/lgrenard/melo/internal/session"
)

// Persist applies one change batch atomically. New albums must precede
// their tracks and extras in the batch's insert order; the session hands
// items over in attachment order, which satisfies this.
func (s *Store) Persist(ctx context.Context, change session.Change) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, item := range change.New {
			if err := s.insert(ctx, tx, item); err != nil {
				return err
			}
		}
		for _, changed := range change.Changed {
			if err := s.update(ctx, tx, changed); err != nil {
				return err
			}
		}
		for _, item := range change.Removed {
			if err := s.delete(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, item library.Item) error {
	switch it := item.(type) {
	case *library.Album:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO albums (artist, title, year, path) VALUES (?, ?, ?, ?)`,
			it.Artist, it.Title, it.Year, library.EncodePath(it.Path(), s.root))
		if err != nil {
			return fmt.Errorf("insert album %s: %w", it, wrapConstraint(err))
		}
		return nil
	case *library.Track:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tracks (track_num, album_artist, album_title, album_year,
                artist, title, file_ext, filename)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.TrackNum, it.Album.Artist, it.Album.Title, it.Album.Year,
			it.Artist, it.Title, it.FileExt, it.Filename)
		if err != nil {
			return fmt.Errorf("insert track %s: %w", it, wrapConstraint(err))
		}
		return s.writeGenres(ctx, tx, it)
	case *library.Extra:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO extras (filename, album_artist, album_title, album_year)
             VALUES (?, ?, ?, ?)`,
			it.Filename, it.Album.Artist, it.Album.Title, it.Album.Year)
		if err != nil {
			return fmt.Errorf("insert extra %s: %w", it, wrapConstraint(err))
		}
		return nil
	}
	panic(fmt.Sprintf("db: unsupported item kind %s", item.Kind()))
}

// update matches rows by the item's prior attribute values, so updates that
// touch key columns still find their row. Child rows follow key changes via
// ON UPDATE CASCADE.
func (s *Store) update(ctx context.Context, tx *sql.Tx, changed session.ChangedItem) error {
	prior := changed.Prior
	switch it := changed.Item.(type) {
	case *library.Album:
		_, err := tx.ExecContext(ctx,
			`UPDATE albums SET artist = ?, title = ?, year = ?, path = ?
             WHERE artist = ? AND title = ? AND year = ?`,
			it.Artist, it.Title, it.Year, library.EncodePath(it.Path(), s.root),
			prior["artist"], prior["title"], prior["year"])
		if err != nil {
			return fmt.Errorf("update album %s: %w", it, wrapConstraint(err))
		}
		return nil
	case *library.Track:
		_, err := tx.ExecContext(ctx,
			`UPDATE tracks SET track_num = ?, artist = ?, title = ?, file_ext = ?, filename = ?
             WHERE track_num = ? AND album_artist = ? AND album_title = ? AND album_year = ?`,
			it.TrackNum, it.Artist, it.Title, it.FileExt, it.Filename,
			prior["track_num"], it.Album.Artist, it.Album.Title, it.Album.Year)
		if err != nil {
			return fmt.Errorf("update track %s: %w", it, wrapConstraint(err))
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM track_genres
             WHERE track_num = ? AND album_artist = ? AND album_title = ? AND album_year = ?`,
			it.TrackNum, it.Album.Artist, it.Album.Title, it.Album.Year); err != nil {
			return fmt.Errorf("clear genres of %s: %w", it, err)
		}
		return s.writeGenres(ctx, tx, it)
	case *library.Extra:
		_, err := tx.ExecContext(ctx,
			`UPDATE extras SET filename = ?
             WHERE filename = ? AND album_artist = ? AND album_title = ? AND album_year = ?`,
			it.Filename,
			prior["filename"], it.Album.Artist, it.Album.Title, it.Album.Year)
		if err != nil {
			return fmt.Errorf("update extra %s: %w", it, wrapConstraint(err))
		}
		return nil
	}
	panic(fmt.Sprintf("db: unsupported item kind %s", changed.Item.Kind()))
}

func (s *Store) delete(ctx context.Context, tx *sql.Tx, item library.Item) error {
	switch it := item.(type) {
	case *library.Album:
		// Tracks and extras cascade.
		_, err := tx.ExecContext(ctx,
			`DELETE FROM albums WHERE artist = ? AND title = ? AND year = ?`,
			it.Artist, it.Title, it.Year)
		if err != nil {
			return fmt.Errorf("delete album %s: %w", it, err)
		}
		return nil
	case *library.Track:
		_, err := tx.ExecContext(ctx,
			`DELETE FROM tracks
             WHERE track_num = ? AND album_artist = ? AND album_title = ? AND album_year = ?`,
			it.TrackNum, it.Album.Artist, it.Album.Title, it.Album.Year)
		if err != nil {
			return fmt.Errorf("delete track %s: %w", it, err)
		}
		return nil
	case *library.Extra:
		_, err := tx.ExecContext(ctx,
			`DELETE FROM extras
             WHERE filename = ? AND album_artist = ? AND album_title = ? AND album_year = ?`,
			it.Filename, it.Album.Artist, it.Album.Title, it.Album.Year)
		if err != nil {
			return fmt.Errorf("delete extra %s: %w", it, err)
		}
		return nil
	}
	panic(fmt.Sprintf("db: unsupported item kind %s", item.Kind()))
}

// writeGenres records a track's tag associations. Empty genre names are a
// meaningless association and are skipped with a warning.
func (s *Store) writeGenres(ctx context.Context, tx *sql.Tx, t *library.Track) error {
	for _, genre := range t.Genres {
		if genre == "" {
			s.log.Warn("skipping empty genre association", "track", t.String())
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO genres (name) VALUES (?)`, genre); err != nil {
			return fmt.Errorf("insert genre %q: %w", genre, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO track_genres (genre, track_num, album_artist, album_title, album_year)
             VALUES (?, ?, ?, ?, ?)`,
			genre, t.TrackNum, t.Album.Artist, t.Album.Title, t.Album.Year); err != nil {
			return fmt.Errorf("associate genre %q with %s: %w", genre, t, err)
		}
	}
	return nil
}

// AlbumByKey loads the album with the given natural key, including its
// tracks and extras. Returns nil when no such album exists.
func (s *Store) AlbumByKey(ctx context.Context, artist, title string, year int) (*library.Album, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path FROM albums WHERE artist = ? AND title = ? AND year = ?`,
		artist, title, year)

	var storedPath string
	if err := row.Scan(&storedPath); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	album := library.NewAlbum(artist, title, year, library.DecodePath(storedPath, s.root))
	if err := s.loadChildren(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// Albums loads every album in the library with its full child graph,
// ordered by natural key.
func (s *Store) Albums(ctx context.Context) ([]*library.Album, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artist, title, year, path FROM albums
         ORDER BY artist COLLATE NOCASE, year, title COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []*library.Album
	for rows.Next() {
		var artist, title, storedPath string
		var year int
		if err := rows.Scan(&artist, &title, &year, &storedPath); err != nil {
			return nil, err
		}
		albums = append(albums, library.NewAlbum(artist, title, year, library.DecodePath(storedPath, s.root)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, album := range albums {
		if err := s.loadChildren(ctx, album); err != nil {
			return nil, err
		}
	}
	return albums, nil
}

func (s *Store) loadChildren(ctx context.Context, album *library.Album) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT track_num, artist, title, file_ext, filename FROM tracks
         WHERE album_artist = ? AND album_title = ? AND album_year = ?
         ORDER BY track_num`,
		album.Artist, album.Title, album.Year)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var trackNum int
		var artist, title, fileExt, filename string
		if err := rows.Scan(&trackNum, &artist, &title, &fileExt, &filename); err != nil {
			return err
		}
		track := library.NewTrack(album, trackNum, artist, title, filename)
		track.FileExt = fileExt
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, track := range album.Tracks {
		genres, err := s.trackGenres(ctx, track)
		if err != nil {
			return err
		}
		track.Genres = genres
	}

	extraRows, err := s.db.QueryContext(ctx,
		`SELECT filename FROM extras
         WHERE album_artist = ? AND album_title = ? AND album_year = ?
         ORDER BY filename`,
		album.Artist, album.Title, album.Year)
	if err != nil {
		return err
	}
	defer extraRows.Close()

	for extraRows.Next() {
		var filename string
		if err := extraRows.Scan(&filename); err != nil {
			return err
		}
		library.NewExtra(album, filename)
	}
	return extraRows.Err()
}

func (s *Store) trackGenres(ctx context.Context, t *library.Track) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT genre FROM track_genres
         WHERE track_num = ? AND album_artist = ? AND album_title = ? AND album_year = ?
         ORDER BY genre`,
		t.TrackNum, t.Album.Artist, t.Album.Title, t.Album.Year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// ReKeyAlbum is the explicit rename path for an album's immutable natural
// key. Track and extra foreign keys follow via ON UPDATE CASCADE. The album
// struct is updated on success.
func (s *Store) ReKeyAlbum(ctx context.Context, album *library.Album, artist, title string, year int) error {
	err := s.withTx(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE albums SET artist = ?, title = ?, year = ?
             WHERE artist = ? AND title = ? AND year = ?`,
			artist, title, year,
			album.Artist, album.Title, album.Year)
		return wrapConstraint(err)
	})
	if err != nil {
		return fmt.Errorf("re-key album %s: %w", album, err)
	}
	album.Artist = artist
	album.Title = title
	album.Year = year
	return nil
}
