package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kazz187/taskdeck/internal/api"
	"github.com/kazz187/taskdeck/internal/eventbus"
	"github.com/kazz187/taskdeck/internal/exitcode"
	"github.com/kazz187/taskdeck/internal/store"
	"github.com/kazz187/taskdeck/internal/task"
	"github.com/kazz187/taskdeck/pkg/color"
)

// shortIDLen is how much of an id the list shows. ULIDs share their
// leading time bits, so the tail is shown.
const shortIDLen = 8

var (
	errEmptyEdit   = errors.New("nothing to change: pass --title, --description or --status")
	errAmbiguousID = errors.New("ambiguous task id")
	errEmptyTitle  = errors.New("title is required")
)

// cli runs the one-shot commands. Every command reads the current list
// through the store before it mutates anything.
type cli struct {
	client *api.Client
	store  *store.Store
	out    io.Writer
}

type editFlags struct {
	title       *string
	description *string
	status      *string
}

func (c *cli) list(ctx context.Context) error {
	if err := c.store.Refresh(ctx); err != nil {
		return err
	}
	tasks := c.store.Snapshot().Tasks
	if len(tasks) == 0 {
		fmt.Fprintln(c.out, color.Muted("No tasks yet. Add one with `taskdeck add TITLE`."))
		return nil
	}
	for _, t := range tasks {
		c.printTask(t)
	}
	return nil
}

func (c *cli) add(ctx context.Context, title, description string, done bool) error {
	draft := task.Draft{Title: title, Description: description, Status: task.StatusPending}
	if done {
		draft.Status = task.StatusCompleted
	}
	draft = draft.Normalize()
	if draft.Title == "" {
		return errEmptyTitle
	}
	created, err := c.store.Create(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Success("Added"), color.ID(shortID(created.ID)), created.Title)
	return nil
}

func (c *cli) toggle(ctx context.Context, arg string) error {
	id, err := c.resolve(ctx, arg)
	if err != nil {
		return err
	}
	updated, err := c.store.Toggle(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Success("Marked "+statusText(updated.Status)), color.ID(shortID(updated.ID)), updated.Title)
	return nil
}

func (c *cli) edit(ctx context.Context, arg string, flags editFlags) error {
	patch := task.Patch{}
	if flags.title != nil {
		title := strings.TrimSpace(*flags.title)
		if title == "" {
			return errEmptyTitle
		}
		patch = patch.WithTitle(title)
	}
	if flags.description != nil {
		patch = patch.WithDescription(strings.TrimSpace(*flags.description))
	}
	if flags.status != nil {
		patch = patch.WithStatus(task.Status(*flags.status))
	}
	if patch.IsEmpty() {
		return errEmptyEdit
	}

	id, err := c.resolve(ctx, arg)
	if err != nil {
		return err
	}
	updated, err := c.store.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Success("Updated"), color.ID(shortID(updated.ID)), updated.Title)
	return nil
}

func (c *cli) remove(ctx context.Context, arg string) error {
	id, err := c.resolve(ctx, arg)
	if err != nil {
		return err
	}
	t, _ := c.store.Find(id)
	if err := c.store.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(c.out, color.Warn("Deleted"), color.ID(shortID(id)), t.Title)
	return nil
}

// events prints the service's event stream until ctx is cancelled.
func (c *cli) events(ctx context.Context) error {
	err := c.client.StreamEvents(ctx, func(ev eventbus.Event) error {
		fmt.Fprintf(c.out, "%s %-13s %s\n",
			color.Muted(ev.CreatedAt.Local().Format(time.TimeOnly)),
			color.Bold(string(ev.Type)),
			color.ID(ev.TaskID),
		)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// resolve refreshes the store and maps an exact id, or a unique id prefix
// or suffix, to a task in the collection.
func (c *cli) resolve(ctx context.Context, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", store.ErrMissingID
	}
	if err := c.store.Refresh(ctx); err != nil {
		return "", err
	}
	if _, ok := c.store.Find(arg); ok {
		return arg, nil
	}
	var matches []string
	for _, t := range c.store.Snapshot().Tasks {
		id, a := strings.ToLower(t.ID), strings.ToLower(arg)
		if strings.HasPrefix(id, a) || strings.HasSuffix(id, a) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s: %w", arg, store.ErrUnknownTask)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%s matches %d tasks: %w", arg, len(matches), errAmbiguousID)
	}
}

func (c *cli) printTask(t task.Task) {
	check := "[ ]"
	title := t.Title
	if t.Completed() {
		check = color.Success("[x]")
		title = color.Muted(title)
	}
	fmt.Fprintf(c.out, "%s %s %s\n", color.ID(shortID(t.ID)), check, title)
	if t.Description != "" {
		fmt.Fprintf(c.out, "%s%s\n", strings.Repeat(" ", shortIDLen+5), color.Muted(t.Description))
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

func statusText(s task.Status) string {
	if s == task.StatusCompleted {
		return "completed"
	}
	return "pending"
}

func exitCode(err error) int {
	var apiErr *api.Error
	switch {
	case err == nil:
		return exitcode.Success
	case errors.As(err, &apiErr):
		return exitcode.BackendError
	default:
		return exitcode.UserError
	}
}
