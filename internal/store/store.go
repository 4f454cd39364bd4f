// Package store keeps the client-side task collection in sync with the
// task service. Mutations are applied locally first and reconciled with the
// server's answer, or rolled back when the call fails.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/taskdeck/internal/api"
	"github.com/kazz187/taskdeck/internal/task"
)

var (
	// ErrMissingID is returned by Update, Remove and Toggle for an empty id.
	ErrMissingID = errors.New("task id is required")
	// ErrInFlight is returned when the same mutation of the same task is
	// still waiting for the server. State is left untouched.
	ErrInFlight = errors.New("mutation already in flight")
	// ErrUnknownTask is returned by Toggle for ids not in the collection.
	ErrUnknownTask = errors.New("task not in collection")
)

// State is a point-in-time copy of the store.
type State struct {
	Tasks   []task.Task
	Loading bool
	// Err is the last failure recorded by an operation. It stays until
	// ResetError or the next Refresh.
	Err error
}

type Store struct {
	api         api.TasksAPI
	initialLoad bool
	newTempID   func() string

	mu       sync.Mutex
	tasks    []task.Task
	loading  bool
	err      error
	inFlight inFlight

	changes chan struct{}
}

type Option func(*Store)

// WithInitialLoad makes Init fetch the collection, and Loading start out
// true until it does.
func WithInitialLoad(load bool) Option {
	return func(s *Store) {
		s.initialLoad = load
	}
}

func New(tasksAPI api.TasksAPI, opts ...Option) *Store {
	s := &Store{
		api:         tasksAPI,
		initialLoad: true,
		newTempID:   func() string { return task.TempIDPrefix + ulid.Make().String() },
		tasks:       []task.Task{},
		inFlight:    make(inFlight),
		changes:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loading = s.initialLoad
	return s
}

// Init performs the initial load if one was requested.
func (s *Store) Init(ctx context.Context) error {
	if !s.initialLoad {
		return nil
	}
	return s.Refresh(ctx)
}

// Changes is signalled after every state change. Signals coalesce: a
// reader that falls behind sees one pending signal, not one per change.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Tasks:   slices.Clone(s.tasks),
		Loading: s.loading,
		Err:     s.err,
	}
}

func (s *Store) Find(id string) (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	return task.Task{}, false
}

// IsInFlight reports whether key is held by a pending mutation.
func (s *Store) IsInFlight(key MutationKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight.held(key)
}

// Refresh replaces the collection with the server's list. It does not wait
// for pending mutations, so a mutation settling after the list was read
// can leave the collection out of step with the server until the next
// Refresh.
func (s *Store) Refresh(ctx context.Context) error {
	s.mutate(func() {
		s.loading = true
		s.err = nil
	})

	tasks, err := s.api.List(ctx)

	s.mutate(func() {
		s.loading = false
		if err != nil {
			s.err = err
			return
		}
		if tasks == nil {
			tasks = []task.Task{}
		}
		s.tasks = tasks
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to refresh tasks", "error", err)
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	slog.DebugContext(ctx, "tasks refreshed", "count", len(tasks))
	return nil
}

// Create inserts an optimistic record at the head of the collection before
// calling the server, then swaps it for the server's record. On failure the
// optimistic record is dropped. Creates are never deduplicated.
func (s *Store) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	tempID := s.newTempID()
	optimistic := task.Task{
		ID:          tempID,
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status,
		Optimistic:  true,
	}
	if optimistic.Status == "" {
		optimistic.Status = task.StatusPending
	}
	s.mutate(func() {
		s.tasks = slices.Insert(s.tasks, 0, optimistic)
	})

	created, err := s.api.Create(ctx, draft)
	if err != nil {
		s.mutate(func() {
			s.removeID(tempID)
			s.err = err
		})
		slog.WarnContext(ctx, "create rolled back", "temp_id", tempID, "error", err)
		return task.Task{}, fmt.Errorf("failed to create task: %w", err)
	}

	created.Optimistic = false
	s.mutate(func() {
		i := s.indexOf(tempID)
		if i < 0 {
			return
		}
		// A refresh may have brought the server record in already.
		if s.indexOf(created.ID) >= 0 {
			s.tasks = slices.Delete(s.tasks, i, i+1)
			return
		}
		s.tasks[i] = created
	})
	slog.DebugContext(ctx, "create confirmed", "temp_id", tempID, "task_id", created.ID)
	return created, nil
}

// Update applies patch locally and marks the record optimistic, then
// replaces it with the server's record. On failure the exact record seen
// before the call is restored. A second Update of the same id while one is
// pending returns ErrInFlight.
func (s *Store) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	if id == "" {
		return task.Task{}, ErrMissingID
	}
	key := UpdateKey(id)
	var (
		snapshot task.Task
		found    bool
		acquired bool
	)
	s.mutate(func() {
		if acquired = s.inFlight.acquire(key); !acquired {
			return
		}
		if i := s.indexOf(id); i >= 0 {
			snapshot, found = s.tasks[i], true
			next := patch.Apply(snapshot)
			next.Optimistic = true
			s.tasks[i] = next
		}
	})
	if !acquired {
		return task.Task{}, fmt.Errorf("%s: %w", key, ErrInFlight)
	}
	defer s.mutate(func() { s.inFlight.release(key) })

	updated, err := s.api.Update(ctx, id, patch)
	if err != nil {
		s.mutate(func() {
			if found {
				if i := s.indexOf(id); i >= 0 {
					s.tasks[i] = snapshot
				}
			}
			s.err = err
		})
		slog.WarnContext(ctx, "update rolled back", "task_id", id, "error", err)
		return task.Task{}, fmt.Errorf("failed to update task %s: %w", id, err)
	}

	updated.Optimistic = false
	s.mutate(func() {
		if i := s.indexOf(id); i >= 0 {
			s.tasks[i] = updated
		}
	})
	slog.DebugContext(ctx, "update confirmed", "task_id", id)
	return updated, nil
}

// Toggle flips the status of a task in the collection.
func (s *Store) Toggle(ctx context.Context, id string) (task.Task, error) {
	if id == "" {
		return task.Task{}, ErrMissingID
	}
	t, ok := s.Find(id)
	if !ok {
		return task.Task{}, fmt.Errorf("%s: %w", id, ErrUnknownTask)
	}
	return s.Update(ctx, id, task.Patch{}.WithStatus(t.Status.Toggle()))
}

// Remove drops the record locally, then deletes it on the server. On
// failure the record is put back at the head of the collection. A second
// Remove of the same id while one is pending returns ErrInFlight.
func (s *Store) Remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	key := DeleteKey(id)
	var (
		snapshot task.Task
		found    bool
		acquired bool
	)
	s.mutate(func() {
		if acquired = s.inFlight.acquire(key); !acquired {
			return
		}
		if i := s.indexOf(id); i >= 0 {
			snapshot, found = s.tasks[i], true
			s.tasks = slices.Delete(s.tasks, i, i+1)
		}
	})
	if !acquired {
		return fmt.Errorf("%s: %w", key, ErrInFlight)
	}
	defer s.mutate(func() { s.inFlight.release(key) })

	if err := s.api.Remove(ctx, id); err != nil {
		s.mutate(func() {
			if found && s.indexOf(id) < 0 {
				s.tasks = slices.Insert(s.tasks, 0, snapshot)
			}
			s.err = err
		})
		slog.WarnContext(ctx, "delete rolled back", "task_id", id, "error", err)
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	slog.DebugContext(ctx, "delete confirmed", "task_id", id)
	return nil
}

func (s *Store) ResetError() {
	s.mutate(func() {
		s.err = nil
	})
}

// mutate runs fn under the lock and signals Changes.
func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t task.Task) bool { return t.ID == id })
}

func (s *Store) removeID(id string) {
	s.tasks = slices.DeleteFunc(s.tasks, func(t task.Task) bool { return t.ID == id })
}
