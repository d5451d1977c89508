package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/HendryAvila/devflow/internal/project"
	devserver "github.com/HendryAvila/devflow/internal/server"
	"github.com/HendryAvila/devflow/internal/store"
	"github.com/HendryAvila/devflow/internal/templates"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func projectsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List stored projects, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, app *devserver.App, _ []string) error {
			all, err := app.Store.ListAll(ctx)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No projects yet."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), projectsTable(all))
			return nil
		}),
	}
}

func statsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show project totals per phase",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, app *devserver.App, _ []string) error {
			st, err := app.Store.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statsTable(st))
			return nil
		}),
	}
}

func backupsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backups <project-id>",
		Short: "List backups of a project, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, app *devserver.App, args []string) error {
			backups, err := app.Store.ListBackups(ctx, args[0])
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No backups."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), backupsTable(backups))
			return nil
		}),
	}
}

func restoreCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <project-id> [timestamp]",
		Short: "Restore a project from a backup (the latest by default)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, app *devserver.App, args []string) error {
			var stamp string
			if len(args) == 2 {
				stamp = args[1]
			}
			rec, err := app.Store.Restore(ctx, args[0], stamp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %q (%s) to phase %s\n", rec.Name, rec.ID, rec.Phase)
			return nil
		}),
	}
}

func showCmd(flags *globalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <project-id> [requirement|design|todo|done]",
		Short: "Render a generated document (the newest one by default)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(flags, func(ctx context.Context, cmd *cobra.Command, app *devserver.App, args []string) error {
			rec, err := app.Store.Load(ctx, args[0])
			if err != nil {
				return err
			}

			name, ok := templates.ForPhase(rec.Phase)
			if len(args) == 2 {
				if name, err = templates.ParseName(args[1]); err != nil {
					return err
				}
			} else if !ok {
				return fmt.Errorf("project %s is still in %s and has no documents", rec.ID, rec.Phase)
			}

			data, err := os.ReadFile(app.Docs.Path(rec.ID, name))
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("document %s has not been generated for project %s", name, rec.ID)
			}
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}

			if raw {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			out, err := renderMarkdown(string(data))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown source instead of rendering it")
	return cmd
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(md)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func projectsTable(records []*project.Record) string {
	t := newTable("ID", "Name", "Phase", "Tasks", "Updated")
	for _, rec := range records {
		p := rec.Progress()
		t.Row(
			rec.ID,
			rec.Name,
			string(rec.Phase),
			fmt.Sprintf("%d/%d (%d%%)", p.Completed, p.Total, p.Percent),
			rec.UpdatedAt,
		)
	}
	return t.String()
}

func statsTable(st *store.Stats) string {
	t := newTable("Phase", "Projects")
	for _, phase := range project.PhaseOrder {
		t.Row(string(phase), strconv.Itoa(st.ByPhase[phase]))
	}
	t.Row("total", strconv.Itoa(st.Total))
	return t.String()
}

func backupsTable(backups []store.BackupInfo) string {
	t := newTable("Timestamp", "Size", "Path")
	for _, b := range backups {
		t.Row(b.Timestamp, strconv.FormatInt(b.Size, 10), b.Path)
	}
	return t.String()
}
