package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/kazz187/taskdeck/internal/config"
	"github.com/kazz187/taskdeck/internal/event"
	"github.com/kazz187/taskdeck/internal/eventbus"
	"github.com/kazz187/taskdeck/internal/server"
	"github.com/kazz187/taskdeck/internal/task"
	"github.com/kazz187/taskdeck/internal/task/repositoryimpl"
	"github.com/kazz187/taskdeck/pkg/clog"
	"github.com/kazz187/taskdeck/pkg/panicerr"
	"github.com/kazz187/taskdeck/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := kingpin.New("taskd", "Task service for taskdeck.")
	app.HelpFlag.Short('h')
	host := app.Flag("host", "Listen host (overrides TASKD_HTTP_HOST).").String()
	port := app.Flag("port", "Listen port (overrides TASKD_HTTP_PORT).").Short('p').String()
	dataDir := app.Flag("data-dir", "Local storage directory (overrides TASKD_STORAGE_BASE_DIR).").String()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadServerEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		env.HTTPHost = *host
	}
	if *port != "" {
		env.HTTPPort = *port
	}
	if *dataDir != "" {
		env.BaseDir = *dataDir
	}

	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(env.SlogLevel()))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: env.SlogLevel()})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	if err := run(env); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(env *config.ServerEnv) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := newStorage(ctx, env)
	if err != nil {
		return err
	}

	bus := eventbus.New()
	defer bus.Close()

	taskRepo := repositoryimpl.NewYAMLRepository(store)
	srv := server.NewServer(
		env,
		task.NewServer(taskRepo, bus),
		event.NewServer(bus),
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext("http server", func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}))
	p.Go(panicerr.SafeContext("shutdown", func(ctx context.Context) error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}))
	if w, ok := store.(storage.Watcher); ok && env.Watch {
		p.Go(panicerr.SafeContext("storage watcher", func(ctx context.Context) error {
			return repositoryimpl.PublishExternalChanges(ctx, w, bus)
		}))
	}
	return p.Wait()
}

func newStorage(ctx context.Context, env *config.ServerEnv) (storage.Storage, error) {
	switch env.StorageEnv.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		slog.Info("using S3 storage", "bucket", env.S3Bucket, "prefix", env.S3Prefix)
		return s, nil
	default:
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		slog.Info("using local storage", "base_dir", env.BaseDir)
		return s, nil
	}
}
