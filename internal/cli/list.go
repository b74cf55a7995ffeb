package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"smarttodo/internal/task"
)

type listItem struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Deadline    string `json:"deadline" yaml:"deadline"`
	IsCompleted bool   `json:"isCompleted" yaml:"isCompleted"`
	CreatedAt   string `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   string `json:"updatedAt" yaml:"updatedAt"`
	Status      string `json:"status" yaml:"status"`
	Urgency     string `json:"urgency" yaml:"urgency"`
	TimeDisplay string `json:"timeDisplay" yaml:"timeDisplay"`
}

func newListItem(t task.Task, now time.Time) listItem {
	return listItem{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Deadline:    task.FormatTimestamp(t.Deadline),
		IsCompleted: t.IsCompleted,
		CreatedAt:   task.FormatTimestamp(t.CreatedAt),
		UpdatedAt:   task.FormatTimestamp(t.UpdatedAt),
		Status:      task.DeriveStatus(t, now).String(),
		Urgency:     task.DeriveUrgency(t, now).String(),
		TimeDisplay: task.FormatTimeDisplay(t, now),
	}
}

type listOptions struct {
	status string
	query  string
	output string
}

func newListCmd(app *App) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks grouped by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, app, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.status, "status", "s", "", "Only show one bucket: ongoing, success or failure")
	cmd.Flags().StringVarP(&opts.query, "search", "q", "", "Case-insensitive filter on title and description")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func newSearchCmd(app *App) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find tasks whose title or description contains query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.query = strings.Join(args, " ")
			return runList(cmd, app, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func runList(cmd *cobra.Command, app *App, opts listOptions) error {
	switch opts.output {
	case "table", "json", "yaml":
	default:
		return withCode(UserError, fmt.Errorf("unknown output format %q", opts.output))
	}

	cache, err := app.session(cmd.Context())
	if err != nil {
		return err
	}
	view, err := cache.Snapshot(cmd.Context())
	if err != nil {
		return err
	}

	var groups []task.Status
	if opts.status != "" {
		s, err := task.ParseStatus(opts.status)
		if err != nil {
			return withCode(UserError, err)
		}
		groups = []task.Status{s}
	} else if app.cfg.DefaultFilter != "" && app.cfg.DefaultFilter != "all" {
		if s, err := task.ParseStatus(app.cfg.DefaultFilter); err == nil {
			groups = []task.Status{s}
		}
	}
	if groups == nil {
		groups = task.Statuses
	}

	var items []listItem
	grouped := make(map[task.Status][]task.Task, len(groups))
	for _, s := range groups {
		found := task.Search(view.Buckets.Get(s), opts.query)
		grouped[s] = found
		for _, t := range found {
			items = append(items, newListItem(t, view.Now))
		}
	}
	if items == nil {
		items = []listItem{}
	}

	out := cmd.OutOrStdout()
	switch opts.output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(items); err != nil {
			return err
		}
		return enc.Close()
	}

	writeTable(out, groups, grouped, view.Now)
	if strings.TrimSpace(opts.query) != "" {
		_, stats := task.SearchWithStats(view.Tasks, opts.query)
		fmt.Fprintf(out, "\nFound %d of %d tasks\n", stats.Found, stats.Total)
	}
	return nil
}

func writeTable(out io.Writer, groups []task.Status, grouped map[task.Status][]task.Task, now time.Time) {
	for i, s := range groups {
		if i > 0 {
			fmt.Fprintln(out)
		}
		tasks := grouped[s]
		fmt.Fprintf(out, "%s (%d)\n", s.Label(), len(tasks))
		if len(tasks) == 0 {
			fmt.Fprintln(out, "  (none)")
			continue
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, t := range tasks {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
				shortID(t.ID),
				t.Title,
				task.FormatTimeDisplay(t, now),
				task.DeriveUrgency(t, now),
				"created "+humanize.RelTime(t.CreatedAt, now, "ago", "from now"),
			)
		}
		tw.Flush()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
