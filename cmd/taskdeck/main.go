package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/taskdeck/internal/api"
	"github.com/kazz187/taskdeck/internal/config"
	"github.com/kazz187/taskdeck/internal/exitcode"
	"github.com/kazz187/taskdeck/internal/store"
	"github.com/kazz187/taskdeck/internal/tui"
	"github.com/kazz187/taskdeck/pkg/clog"
	"github.com/kazz187/taskdeck/pkg/color"
)

var (
	app = kingpin.New("taskdeck", "Keep track of your tasks from the terminal.")

	apiBase = app.Flag("api", "Task service base URL (overrides TASKDECK_API_BASE).").String()
	timeout = app.Flag("timeout", "Per-request timeout (overrides TASKDECK_TIMEOUT).").Duration()
	noColor = app.Flag("no-color", "Disable colored output.").Bool()

	tuiCmd = app.Command("tui", "Open the interactive task board.").Default()

	listCmd = app.Command("list", "List tasks.").Alias("ls")

	addCmd         = app.Command("add", "Add a task.")
	addTitle       = addCmd.Arg("title", "Task title.").Required().String()
	addDescription = addCmd.Flag("description", "Task description.").Short('d').String()
	addDone        = addCmd.Flag("done", "Create the task as completed.").Bool()

	toggleCmd = app.Command("toggle", "Flip a task between pending and completed.")
	toggleID  = toggleCmd.Arg("id", "Task ID or the short ID printed by list.").Required().String()

	editCmd            = app.Command("edit", "Edit a task.")
	editID             = editCmd.Arg("id", "Task ID or the short ID printed by list.").Required().String()
	editTitleSet       bool
	editTitle          = editCmd.Flag("title", "New title.").IsSetByUser(&editTitleSet).String()
	editDescriptionSet bool
	editDescription    = editCmd.Flag("description", "New description.").IsSetByUser(&editDescriptionSet).String()
	editStatusSet      bool
	editStatus         = editCmd.Flag("status", "New status.").IsSetByUser(&editStatusSet).Enum("pending", "completed")

	rmCmd = app.Command("rm", "Delete a task.").Alias("delete")
	rmID  = rmCmd.Arg("id", "Task ID or the short ID printed by list.").Required().String()

	eventsCmd = app.Command("events", "Follow the task service event stream.")
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app.HelpFlag.Short('h')
	command, err := app.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.Error(err.Error()))
		return exitcode.UserError
	}
	if *noColor {
		color.SetEnabled(false)
	}

	env, err := config.LoadClientEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.Error(err.Error()))
		return exitcode.ConfigError
	}
	if *apiBase != "" {
		env.APIBase = *apiBase
	}
	if *timeout > 0 {
		env.Timeout = *timeout
	}

	closeLog, err := setupLogger(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.Error(err.Error()))
		return exitcode.ConfigError
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	client := api.NewClient(env.BaseURL(), api.WithTimeout(env.Timeout))
	slog.Debug("starting taskdeck", "command", command, "api", client.BaseURL())

	if command == tuiCmd.FullCommand() {
		s := store.New(client)
		if err := tui.Run(ctx, s); err != nil {
			fmt.Fprintln(os.Stderr, color.Error(err.Error()))
			return exitcode.UserError
		}
		return exitcode.Success
	}

	c := &cli{
		client: client,
		store:  store.New(client, store.WithInitialLoad(false)),
		out:    os.Stdout,
	}
	switch command {
	case listCmd.FullCommand():
		err = c.list(ctx)
	case addCmd.FullCommand():
		err = c.add(ctx, *addTitle, *addDescription, *addDone)
	case toggleCmd.FullCommand():
		err = c.toggle(ctx, *toggleID)
	case editCmd.FullCommand():
		e := editFlags{}
		if editTitleSet {
			e.title = editTitle
		}
		if editDescriptionSet {
			e.description = editDescription
		}
		if editStatusSet {
			e.status = editStatus
		}
		err = c.edit(ctx, *editID, e)
	case rmCmd.FullCommand():
		err = c.remove(ctx, *rmID)
	case eventsCmd.FullCommand():
		err = c.events(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.Error("error: ")+err.Error())
		return exitCode(err)
	}
	return exitcode.Success
}

// setupLogger sends logs to TASKDECK_LOG_FILE, or nowhere, so they never
// draw over the board.
func setupLogger(env *config.ClientEnv) (func(), error) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if env.LogFile != "" {
		f, err := os.OpenFile(env.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	handler := clog.NewTextHandler(w, clog.WithColor(false), clog.WithLevel(env.SlogLevel()))
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
	return closeFn, nil
}
