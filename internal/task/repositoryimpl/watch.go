package repositoryimpl

import (
	"context"
	"log/slog"

	"github.com/kazz187/taskdeck/internal/eventbus"
	"github.com/kazz187/taskdeck/pkg/storage"
)

// PublishExternalChanges publishes a task.changed event for every task
// file another process writes or removes. It blocks until ctx is done.
func PublishExternalChanges(ctx context.Context, w storage.Watcher, bus *eventbus.Bus) error {
	return w.Watch(ctx, TasksPrefix, func(c storage.Change) {
		id, ok := IDFromPath(c.Path)
		if !ok {
			return
		}
		slog.DebugContext(ctx, "task file changed on disk", "task_id", id, "kind", c.Kind)
		bus.PublishNew(eventbus.TaskChanged, id)
	})
}
