package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/hotspot/internal/model"
)

// NewHotspotCommand creates the hotspot command group.
func NewHotspotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotspot",
		Short: "Inspect stored hotspots",
	}
	cmd.AddCommand(newHotspotListCommand(rootOpts))
	return cmd
}

func newHotspotListCommand(opts *RootOptions) *cobra.Command {
	var slideID string
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List the stored hotspots of a project or of one slide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			out := opts.formatter(cmd)
			var list []model.Hotspot
			if slideID != "" {
				list, err = e.adapter.Hotspots(ctx, args[0], slideID)
			} else {
				var bySlide map[string][]model.Hotspot
				bySlide, err = e.adapter.ProjectHotspots(ctx, args[0])
				list = flatten(bySlide)
			}
			if err != nil {
				return out.Fail("failed to list hotspots", err)
			}
			if list == nil {
				list = []model.Hotspot{}
			}
			return out.Success(list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No hotspots.")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SLIDE\t#\tID\tNAME\tEVENT\tX\tY")
				for _, h := range list {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%g\t%g\n",
						h.SlideID, h.Order+1, h.ID, h.Name, h.EventType, h.Position.X, h.Position.Y)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&slideID, "slide", "", "only hotspots of this slide")
	return cmd
}

// flatten orders hotspots by slide id, then by order.
func flatten(bySlide map[string][]model.Hotspot) []model.Hotspot {
	ids := make([]string, 0, len(bySlide))
	for id := range bySlide {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []model.Hotspot
	for _, id := range ids {
		out = append(out, bySlide[id]...)
	}
	return out
}
