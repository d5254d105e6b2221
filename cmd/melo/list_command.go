package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var showTracks, showPaths bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List albums in the library",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				albums, err := a.store.Albums(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, album := range albums {
					if showPaths {
						fmt.Fprintln(out, album.Path())
					} else {
						fmt.Fprintln(out, album)
					}
					if !showTracks {
						continue
					}
					for _, t := range album.Tracks {
						if showPaths {
							fmt.Fprintf(out, "  %s\n", t.Path())
						} else {
							fmt.Fprintf(out, "  %02d - %s\n", t.TrackNum, t.Title)
						}
					}
					for _, e := range album.Extras {
						if showPaths {
							fmt.Fprintf(out, "  %s\n", e.Path())
						} else {
							fmt.Fprintf(out, "  %s\n", e.Filename)
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&showTracks, "tracks", "t", false, "also list each album's tracks and extras")
	cmd.Flags().BoolVarP(&showPaths, "paths", "p", false, "print file paths instead of descriptions")
	return cmd
}
