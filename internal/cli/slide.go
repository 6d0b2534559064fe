package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/session"
)

// NewSlideCommand creates the slide command group.
func NewSlideCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slide",
		Short: "Add and list slides of a project",
	}
	cmd.AddCommand(newSlideAddCommand(rootOpts))
	cmd.AddCommand(newSlideListCommand(rootOpts))
	return cmd
}

func newSlideAddCommand(opts *RootOptions) *cobra.Command {
	var (
		title    string
		duration float64
		image    string
	)
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Append a slide to a project",
		Long: `Append a slide to a project.

The slide is added through an editing session, so it gets the same
defaults, validation and ordering as an edit made in the editor, and is
saved before the command exits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			out := opts.formatter(cmd)
			s, err := session.Open(ctx, e.adapter, args[0], e.sessionOptions())
			if err != nil {
				return out.Fail("failed to open project", err)
			}

			var patch model.SlidePatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("duration") {
				patch.Duration = &duration
			}
			if image != "" {
				patch.Background = &model.Background{URL: image, Kind: model.MediaImage}
			}
			sl, addErr := s.Store.AddSlide(patch)
			if err := errors.Join(addErr, s.Close(ctx)); err != nil {
				return out.Fail("failed to add slide", err)
			}
			out.VerboseLog("saved slide %s of project %s", sl.ID, args[0])
			return out.Success(sl, func(w io.Writer) {
				fmt.Fprintf(w, "Added slide %s %q at position %d\n", sl.ID, sl.Title, sl.Order+1)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "slide title (default \"Slide N\")")
	cmd.Flags().Float64Var(&duration, "duration", 0, "auto-advance duration in seconds")
	cmd.Flags().StringVar(&image, "image", "", "background image URL")
	return cmd
}

func newSlideListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List the stored slides of a project in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			out := opts.formatter(cmd)
			slides, err := e.adapter.Slides(cmd.Context(), args[0])
			if err != nil {
				return out.Fail("failed to list slides", err)
			}
			return out.Success(slides, func(w io.Writer) {
				if len(slides) == 0 {
					fmt.Fprintln(w, "No slides.")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tID\tTITLE\tDURATION")
				for _, sl := range slides {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%g\n", sl.Order+1, sl.ID, sl.Title, sl.Duration)
				}
				tw.Flush()
			})
		},
	}
}
