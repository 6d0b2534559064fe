package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/hotspot/internal/model"
)

// NewProjectCommand creates the project command group.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, list, show and delete projects",
	}
	cmd.AddCommand(newProjectCreateCommand(rootOpts))
	cmd.AddCommand(newProjectListCommand(rootOpts))
	cmd.AddCommand(newProjectShowCommand(rootOpts))
	cmd.AddCommand(newProjectDeleteCommand(rootOpts))
	return cmd
}

func newProjectCreateCommand(opts *RootOptions) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a project and its row-store document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			out := opts.formatter(cmd)
			p, err := e.adapter.CreateProject(cmd.Context(), model.Project{Title: args[0], Description: description})
			if err != nil {
				return out.Fail("failed to create project", err)
			}
			return out.Success(p, func(w io.Writer) {
				fmt.Fprintf(w, "Created project %s (%s)\n", p.ID, p.Title)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "project description")
	return cmd
}

func newProjectListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			out := opts.formatter(cmd)
			projects, err := e.adapter.ListProjects(cmd.Context())
			if err != nil {
				return out.Fail("failed to list projects", err)
			}
			return out.Success(projects, func(w io.Writer) {
				if len(projects) == 0 {
					fmt.Fprintln(w, "No projects.")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tUPDATED")
				for _, p := range projects {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Status, p.UpdatedAt.Format("2006-01-02 15:04"))
				}
				tw.Flush()
			})
		},
	}
}

// projectSummary is the output of project show.
type projectSummary struct {
	Project  model.Project `json:"project"`
	Slides   []slideLine   `json:"slides"`
	Hotspots int           `json:"hotspots"`
}

type slideLine struct {
	ID       string `json:"id"`
	Order    int    `json:"order"`
	Title    string `json:"title"`
	Hotspots int    `json:"hotspots"`
}

func newProjectShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its slides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			out := opts.formatter(cmd)
			p, err := e.adapter.GetProject(ctx, args[0])
			if err != nil {
				return out.Fail("failed to read project", err)
			}
			slides, err := e.adapter.Slides(ctx, p.ID)
			if err != nil {
				return out.Fail("failed to read slides", err)
			}
			bySlide, err := e.adapter.ProjectHotspots(ctx, p.ID)
			if err != nil {
				return out.Fail("failed to read hotspots", err)
			}

			summary := projectSummary{Project: p, Slides: []slideLine{}}
			for _, sl := range slides {
				n := len(bySlide[sl.ID])
				summary.Slides = append(summary.Slides, slideLine{ID: sl.ID, Order: sl.Order, Title: sl.Title, Hotspots: n})
				summary.Hotspots += n
			}
			return out.Success(summary, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s [%s]\n", p.ID, p.Title, p.Status)
				if p.Description != "" {
					fmt.Fprintf(w, "  %s\n", p.Description)
				}
				fmt.Fprintf(w, "  document: %s\n", p.DocumentID)
				fmt.Fprintf(w, "  slides: %d, hotspots: %d\n", len(summary.Slides), summary.Hotspots)
				for _, sl := range summary.Slides {
					fmt.Fprintf(w, "  %d. %s %q (%d hotspots)\n", sl.Order+1, sl.ID, sl.Title, sl.Hotspots)
				}
			})
		},
	}
}

func newProjectDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project with all of its slides, hotspots and analytics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			out := opts.formatter(cmd)
			if err := e.adapter.DeleteProject(cmd.Context(), args[0]); err != nil {
				return out.Fail("failed to delete project", err)
			}
			return out.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted project %s\n", args[0])
			})
		},
	}
}
