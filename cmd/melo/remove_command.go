package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <artist> <title> <year>",
		Aliases: []string{"remove"},
		Short:   "Remove an album from the library",
		Long: `Remove an album and its tracks and extras from the library database.
Files on disk are left untouched.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				album, err := a.findAlbum(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				a.sess.Track(album)
				a.sess.Delete(album)
				if err := a.sess.Flush(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", album)
				return nil
			})
		},
	}
}
