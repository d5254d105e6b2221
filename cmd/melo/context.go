package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/lgrenard/melo/internal/add"
	"github.com/lgrenard/melo/internal/config"
	"github.com/lgrenard/melo/internal/db"
	"github.com/lgrenard/melo/internal/hook"
	"github.com/lgrenard/melo/internal/library"
	"github.com/lgrenard/melo/internal/logging"
	"github.com/lgrenard/melo/internal/move"
	"github.com/lgrenard/melo/internal/session"
)

// app wires the library stack for one command invocation: config, logger,
// store, hook registry, session, and the add and move front-ends.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store *db.Store
	sess  *session.Session
	adder *add.Adder
	mover *move.Mover
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(os.Stderr, cfg.LogLevel)

	store, err := db.Open(cfg.DatabasePath, cfg.LibraryPath, log)
	if err != nil {
		return fmt.Errorf("open library database: %w", err)
	}
	defer store.Close()

	registry := hook.NewRegistry()
	session.DeclareHooks(registry)
	add.DeclareHooks(registry)

	sess := session.New(store, registry, log)

	mover := move.New(move.Config{
		LibraryPath:  cfg.LibraryPath,
		AlbumPath:    cfg.Move.AlbumPath,
		TrackPath:    cfg.Move.TrackPath,
		ExtraPath:    cfg.Move.ExtraPath,
		AsciifyPaths: cfg.Move.AsciifyPaths,
	}, log)
	if err := mover.RegisterHooks(registry); err != nil {
		return err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		store: store,
		sess:  sess,
		adder: add.New(sess, store, nil, log),
		mover: mover,
	}
	return fn(context.Background(), a)
}

// trackAlbum attaches an album and its children to the session so in-place
// edits are written back at the next flush.
func (a *app) trackAlbum(album *library.Album) {
	a.sess.Track(album)
	for _, t := range album.Tracks {
		a.sess.Track(t)
	}
	for _, e := range album.Extras {
		a.sess.Track(e)
	}
}

// findAlbum loads an album by its (artist, title, year) key.
func (a *app) findAlbum(ctx context.Context, artist, title, yearArg string) (*library.Album, error) {
	year, err := strconv.Atoi(yearArg)
	if err != nil {
		return nil, fmt.Errorf("year %q is not a number", yearArg)
	}
	album, err := a.store.AlbumByKey(ctx, artist, title, year)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, fmt.Errorf("no album %s - %s (%d) in the library", artist, title, year)
	}
	return album, nil
}
