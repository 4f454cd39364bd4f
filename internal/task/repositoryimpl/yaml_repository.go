package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/taskdeck/internal/task"
	"github.com/kazz187/taskdeck/pkg/cerr"
	"github.com/kazz187/taskdeck/pkg/storage"
)

// TasksPrefix is the storage directory holding one YAML file per task.
const TasksPrefix = "tasks"

const fileExt = ".yaml"

type YAMLRepository struct {
	storage storage.Storage
}

var _ task.Repository = (*YAMLRepository)(nil)

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func taskPath(id string) string {
	return fmt.Sprintf("%s/%s%s", TasksPrefix, id, fileExt)
}

// IDFromPath returns the task id stored at p, or false when p is not a
// task file.
func IDFromPath(p string) (string, bool) {
	dir, file := path.Split(p)
	if strings.TrimSuffix(dir, "/") != TasksPrefix || !strings.HasSuffix(file, fileExt) {
		return "", false
	}
	id := strings.TrimSuffix(file, fileExt)
	return id, id != ""
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, taskPath(t.ID))
	if err != nil {
		return cerr.WrapStorageError(cerr.StorageRead, "task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := r.storage.Read(ctx, taskPath(id))
	if err != nil {
		return nil, cerr.WrapStorageError(cerr.StorageRead, "task", err)
	}
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task %s: %w", id, err))
	}
	if t.ID == "" {
		t.ID = id
	}
	return &t, nil
}

// List returns every readable task, newest first. Ids are ULIDs, so the
// reverse lexical order of file names is the reverse creation order.
// Files that fail to parse are skipped.
func (r *YAMLRepository) List(ctx context.Context) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, TasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageError(cerr.StorageRead, "tasks", err)
	}

	slices.Sort(paths)
	slices.Reverse(paths)

	tasks := make([]*task.Task, 0, len(paths))
	for _, p := range paths {
		id, ok := IDFromPath(p)
		if !ok {
			continue
		}
		t, err := r.Get(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable task", "path", p, "error", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, taskPath(t.ID))
	if err != nil {
		return cerr.WrapStorageError(cerr.StorageRead, "task", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, taskPath(id)); err != nil {
		return cerr.WrapStorageError(cerr.StorageDelete, "task", err)
	}
	return nil
}

func (r *YAMLRepository) write(ctx context.Context, t *task.Task) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := r.storage.Write(ctx, taskPath(t.ID), data); err != nil {
		return cerr.WrapStorageError(cerr.StorageWrite, "task", err)
	}
	return nil
}
