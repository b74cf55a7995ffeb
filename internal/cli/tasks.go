package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smarttodo/internal/task"
	"smarttodo/internal/taskcache"
)

var errAmbiguous = errors.New("ambiguous task id")

// resolveID accepts a full id or a unique prefix of one.
func resolveID(ctx context.Context, cache *taskcache.Cache, ref string) (task.Task, error) {
	tasks, err := cache.Tasks(ctx)
	if err != nil {
		return task.Task{}, err
	}
	var matches []task.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return task.Task{}, fmt.Errorf("%q: %w", ref, task.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return task.Task{}, withCode(UserError, fmt.Errorf("%q matches %d tasks: %w", ref, len(matches), errAmbiguous))
	}
}

// parseDeadline accepts "+90m" style offsets from now, local
// "YYYY-MM-DD HH:MM" or "YYYY-MM-DD", and any timestamp a backend would
// return.
func parseDeadline(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if strings.HasPrefix(v, "+") {
		d, err := time.ParseDuration(v[1:])
		if err != nil {
			return time.Time{}, withCode(UserError, fmt.Errorf("deadline offset: %w", err))
		}
		return now.Add(d), nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	t, err := task.ParseTimestamp("deadline", v)
	if err != nil {
		return time.Time{}, withCode(UserError, err)
	}
	return t, nil
}

func printTask(cmd *cobra.Command, verb string, t task.Task, now time.Time) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q (%s, %s)\n",
		verb, shortID(t.ID), t.Title, task.DeriveStatus(t, now), task.FormatTimeDisplay(t, now))
}

func newAddCmd(app *App) *cobra.Command {
	var title, description, deadline string
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				title = strings.Join(args, " ")
			}
			now := app.Now()
			due, err := parseDeadline(deadline, now)
			if err != nil {
				return err
			}
			cache, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			created, err := cache.Create(cmd.Context(), task.Draft{
				Title:       strings.TrimSpace(title),
				Description: strings.TrimSpace(description),
				Deadline:    due,
			})
			if err != nil {
				return err
			}
			printTask(cmd, "Added", created, now)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Task title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVar(&deadline, "deadline", "", `Deadline: "YYYY-MM-DD HH:MM", RFC 3339 or an offset like +2h`)
	return cmd
}

func newEditCmd(app *App) *cobra.Command {
	var title, description, deadline string
	var clearDescription bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := app.Now()
			var p task.Patch
			if cmd.Flags().Changed("title") {
				p.Title = task.String(strings.TrimSpace(title))
			}
			if cmd.Flags().Changed("description") {
				p.Description = task.String(strings.TrimSpace(description))
			}
			if clearDescription {
				p.Description = task.String("")
			}
			if cmd.Flags().Changed("deadline") {
				due, err := parseDeadline(deadline, now)
				if err != nil {
					return err
				}
				p.Deadline = &due
			}
			if p.IsEmpty() {
				return withCode(UserError, errors.New("nothing to change: pass --title, --description, --clear-description or --deadline"))
			}

			cache, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			target, err := resolveID(cmd.Context(), cache, args[0])
			if err != nil {
				return err
			}
			updated, err := cache.Update(cmd.Context(), target.ID, p)
			if err != nil {
				return err
			}
			printTask(cmd, "Updated", updated, now)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().BoolVar(&clearDescription, "clear-description", false, "Set the description to empty")
	cmd.Flags().StringVar(&deadline, "deadline", "", "New deadline")
	cmd.MarkFlagsMutuallyExclusive("description", "clear-description")
	return cmd
}

func newDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle completion of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			target, err := resolveID(cmd.Context(), cache, args[0])
			if err != nil {
				return err
			}
			updated, err := cache.ToggleCompletion(cmd.Context(), target.ID)
			if err != nil {
				return err
			}
			verb := "Reopened"
			if updated.IsCompleted {
				verb = "Completed"
			}
			printTask(cmd, verb, updated, app.Now())
			return nil
		},
	}
}

func newRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			target, err := resolveID(cmd.Context(), cache, args[0])
			if err != nil {
				return err
			}
			deleted, err := cache.Delete(cmd.Context(), target.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %q\n", shortID(deleted.ID), deleted.Title)
			return nil
		},
	}
}
