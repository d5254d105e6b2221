package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newMoveCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:     "mv",
		Aliases: []string{"move"},
		Short:   "Move the whole library to the configured layout",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				albums, err := a.store.Albums(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, album := range albums {
					dest, err := a.mover.FmtItemPath(album)
					if err != nil {
						return err
					}
					if dest == album.Path() {
						continue
					}
					if dryRun {
						fmt.Fprintf(out, "%s\n  -> %s\n", album.Path(), dest)
						continue
					}
					a.trackAlbum(album)
					if err := a.mover.MoveItem(album); err != nil {
						return fmt.Errorf("move %s: %w", album, err)
					}
					fmt.Fprintf(out, "Moved %s\n", album)
				}
				if dryRun {
					return nil
				}
				return a.sess.Flush(ctx)
			})
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the moves without performing them")
	return cmd
}
