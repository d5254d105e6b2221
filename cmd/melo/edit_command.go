package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lgrenard/melo/internal/edit"
	"github.com/lgrenard/melo/internal/library"
)

func newEditCommand() *cobra.Command {
	var trackNum int

	cmd := &cobra.Command{
		Use:   "edit <artist> <title> <year> <field>=<value>...",
		Short: "Edit fields of an album or one of its tracks",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				album, err := a.findAlbum(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				a.trackAlbum(album)

				var target library.Item = album
				if trackNum > 0 {
					track := trackByNum(album, trackNum)
					if track == nil {
						return fmt.Errorf("%s has no track %d", album, trackNum)
					}
					target = track
				}

				for _, arg := range args[3:] {
					field, value, found := strings.Cut(arg, "=")
					if !found {
						return fmt.Errorf("argument %q is not of the form field=value", arg)
					}
					if err := edit.EditItem(target, field, value); err != nil {
						return err
					}
				}
				if err := a.sess.Flush(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Edited %s\n", target)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&trackNum, "track", 0, "edit the track with this number instead of the album")
	return cmd
}

func trackByNum(album *library.Album, num int) *library.Track {
	for _, t := range album.Tracks {
		if t.TrackNum == num {
			return t
		}
	}
	return nil
}
