package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskdeck/internal/api"
	"github.com/kazz187/taskdeck/internal/task"
)

var errBackend = &api.Error{Kind: api.KindHTTP, Status: 500, StatusText: "Internal Server Error"}

// call is one request held by fakeAPI until the test answers it.
type call struct {
	method string
	id     string
	draft  task.Draft
	patch  task.Patch
	reply  chan reply
}

type reply struct {
	tasks []task.Task
	task  task.Task
	err   error
}

// fakeAPI parks every call on a channel so tests can inspect the store
// while requests are in flight.
type fakeAPI struct {
	calls chan *call
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(chan *call, 16)}
}

func (f *fakeAPI) park(ctx context.Context, c *call) reply {
	c.reply = make(chan reply, 1)
	f.calls <- c
	select {
	case r := <-c.reply:
		return r
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
}

func (f *fakeAPI) List(ctx context.Context) ([]task.Task, error) {
	r := f.park(ctx, &call{method: "list"})
	return r.tasks, r.err
}

func (f *fakeAPI) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	r := f.park(ctx, &call{method: "create", draft: d})
	return r.task, r.err
}

func (f *fakeAPI) Update(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	r := f.park(ctx, &call{method: "update", id: id, patch: p})
	return r.task, r.err
}

func (f *fakeAPI) Remove(ctx context.Context, id string) error {
	r := f.park(ctx, &call{method: "remove", id: id})
	return r.err
}

func (f *fakeAPI) next(t *testing.T, method string) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		require.Equal(t, method, c.method)
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s call arrived", method)
		return nil
	}
}

// stableAPI answers immediately from a fixed list.
type stableAPI struct {
	mu    sync.Mutex
	tasks []task.Task
}

func (a *stableAPI) List(context.Context) ([]task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]task.Task(nil), a.tasks...), nil
}

func (a *stableAPI) Create(_ context.Context, d task.Draft) (task.Task, error) {
	return task.Task{ID: "srv", Title: d.Title, Status: d.Status}, nil
}

func (a *stableAPI) Update(_ context.Context, id string, p task.Patch) (task.Task, error) {
	return p.Apply(task.Task{ID: id}), nil
}

func (a *stableAPI) Remove(context.Context, string) error { return nil }

func async[T any](fn func() T) <-chan T {
	ch := make(chan T, 1)
	go func() { ch <- fn() }()
	return ch
}

func await[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not settle")
		var zero T
		return zero
	}
}

type result struct {
	task task.Task
	err  error
}

func seeded(t *testing.T, tasks ...task.Task) (*Store, *fakeAPI) {
	t.Helper()
	f := newFakeAPI()
	s := New(f, WithInitialLoad(false))
	done := async(func() error { return s.Refresh(context.Background()) })
	f.next(t, "list").reply <- reply{tasks: tasks}
	require.NoError(t, await(t, done))
	return s, f
}

func TestNew_InitialLoad(t *testing.T) {
	assert.True(t, New(newFakeAPI()).Snapshot().Loading)
	assert.False(t, New(newFakeAPI(), WithInitialLoad(false)).Snapshot().Loading)

	s := New(newFakeAPI(), WithInitialLoad(false))
	require.NoError(t, s.Init(context.Background()))
}

func TestRefresh_Scenario(t *testing.T) {
	f := newFakeAPI()
	s := New(f)
	require.Empty(t, s.Snapshot().Tasks)

	done := async(func() error { return s.Init(context.Background()) })
	c := f.next(t, "list")
	assert.True(t, s.Snapshot().Loading)
	c.reply <- reply{tasks: []task.Task{{ID: "1", Title: "A", Status: task.StatusPending}}}
	require.NoError(t, await(t, done))

	st := s.Snapshot()
	assert.Equal(t, []task.Task{{ID: "1", Title: "A", Status: task.StatusPending}}, st.Tasks)
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
}

func TestRefresh_Idempotent(t *testing.T) {
	backend := &stableAPI{tasks: []task.Task{{ID: "2", Title: "B"}, {ID: "1", Title: "A"}}}
	s := New(backend)

	require.NoError(t, s.Refresh(context.Background()))
	first := s.Snapshot().Tasks
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, first, s.Snapshot().Tasks)
}

func TestRefresh_NilListBecomesEmpty(t *testing.T) {
	s, _ := seeded(t)
	assert.NotNil(t, s.Snapshot().Tasks)
	assert.Empty(t, s.Snapshot().Tasks)
}

func TestRefresh_FailureKeepsTasksAndRecordsError(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Title: "A"})
	done := async(func() error { return s.Refresh(context.Background()) })
	c := f.next(t, "list")
	assert.NoError(t, s.Snapshot().Err, "refresh clears the previous error")
	c.reply <- reply{err: errBackend}

	err := await(t, done)
	assert.ErrorIs(t, err, errBackend)
	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, errBackend, st.Err)
	assert.Len(t, st.Tasks, 1)
}

func TestCreate_SynchronousOptimismAndConfirm(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Title: "A"})
	done := async(func() result {
		tk, err := s.Create(context.Background(), task.Draft{Title: "X"})
		return result{tk, err}
	})

	c := f.next(t, "create")
	st := s.Snapshot()
	require.Len(t, st.Tasks, 2)
	head := st.Tasks[0]
	assert.Equal(t, "X", head.Title)
	assert.True(t, head.Optimistic)
	assert.True(t, head.IsTemporary())
	assert.Equal(t, task.StatusPending, head.Status)

	c.reply <- reply{task: task.Task{ID: "srv-9", Title: "X", Status: task.StatusPending}}
	r := await(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "srv-9", r.task.ID)

	st = s.Snapshot()
	require.Len(t, st.Tasks, 2)
	assert.Equal(t, "srv-9", st.Tasks[0].ID)
	assert.False(t, st.Tasks[0].Optimistic)
	assert.Equal(t, "1", st.Tasks[1].ID)
}

func TestCreate_Rollback(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Title: "A"})
	done := async(func() result {
		tk, err := s.Create(context.Background(), task.Draft{Title: "X"})
		return result{tk, err}
	})
	f.next(t, "create").reply <- reply{err: errBackend}

	r := await(t, done)
	assert.ErrorIs(t, r.err, errBackend)
	assert.Equal(t, task.Task{}, r.task)

	st := s.Snapshot()
	assert.Equal(t, []task.Task{{ID: "1", Title: "A"}}, st.Tasks)
	assert.Equal(t, errBackend, st.Err)
}

func TestCreate_NotDeduplicated(t *testing.T) {
	s, f := seeded(t)
	d1 := async(func() result { tk, err := s.Create(context.Background(), task.Draft{Title: "X"}); return result{tk, err} })
	c1 := f.next(t, "create")
	d2 := async(func() result { tk, err := s.Create(context.Background(), task.Draft{Title: "X"}); return result{tk, err} })
	c2 := f.next(t, "create")

	st := s.Snapshot()
	require.Len(t, st.Tasks, 2)
	assert.NotEqual(t, st.Tasks[0].ID, st.Tasks[1].ID)

	c1.reply <- reply{task: task.Task{ID: "a", Title: "X"}}
	c2.reply <- reply{err: errBackend}
	require.NoError(t, await(t, d1).err)
	require.Error(t, await(t, d2).err)

	st = s.Snapshot()
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "a", st.Tasks[0].ID)
}

func TestCreate_RefreshAlreadyHasServerRecord(t *testing.T) {
	s, f := seeded(t)
	done := async(func() result { tk, err := s.Create(context.Background(), task.Draft{Title: "X"}); return result{tk, err} })
	c := f.next(t, "create")

	refreshed := async(func() error { return s.Refresh(context.Background()) })
	l := f.next(t, "list")
	l.reply <- reply{tasks: []task.Task{{ID: "srv", Title: "X"}}}
	require.NoError(t, await(t, refreshed))

	c.reply <- reply{task: task.Task{ID: "srv", Title: "X"}}
	require.NoError(t, await(t, done).err)
	assert.Equal(t, []task.Task{{ID: "srv", Title: "X"}}, s.Snapshot().Tasks)
}

func TestUpdate_OptimisticAndConfirm(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Title: "A", Status: task.StatusPending})
	done := async(func() result {
		tk, err := s.Update(context.Background(), "1", task.Patch{}.WithTitle("B"))
		return result{tk, err}
	})

	c := f.next(t, "update")
	assert.Equal(t, "1", c.id)
	cur, ok := s.Find("1")
	require.True(t, ok)
	assert.Equal(t, "B", cur.Title)
	assert.True(t, cur.Optimistic)
	assert.True(t, s.IsInFlight(UpdateKey("1")))

	c.reply <- reply{task: task.Task{ID: "1", Title: "B (server)", Status: task.StatusPending}}
	r := await(t, done)
	require.NoError(t, r.err)

	cur, _ = s.Find("1")
	assert.Equal(t, task.Task{ID: "1", Title: "B (server)", Status: task.StatusPending}, cur)
	assert.False(t, s.IsInFlight(UpdateKey("1")))
}

func TestUpdate_Rollback(t *testing.T) {
	original := task.Task{ID: "1", Title: "A", Status: task.StatusPending}
	s, f := seeded(t, original, task.Task{ID: "2", Title: "other"})
	done := async(func() result {
		tk, err := s.Update(context.Background(), "1", task.Patch{}.WithTitle("B"))
		return result{tk, err}
	})
	f.next(t, "update").reply <- reply{err: errBackend}

	r := await(t, done)
	assert.ErrorIs(t, r.err, errBackend)
	st := s.Snapshot()
	assert.Equal(t, []task.Task{original, {ID: "2", Title: "other"}}, st.Tasks)
	assert.Equal(t, errBackend, st.Err)
	assert.False(t, s.IsInFlight(UpdateKey("1")))
}

func TestUpdate_Deduplicated(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Title: "A"})
	first := async(func() result {
		tk, err := s.Update(context.Background(), "1", task.Patch{}.WithTitle("B"))
		return result{tk, err}
	})
	c := f.next(t, "update")

	_, err := s.Update(context.Background(), "1", task.Patch{}.WithTitle("C"))
	assert.ErrorIs(t, err, ErrInFlight)
	cur, _ := s.Find("1")
	assert.Equal(t, "B", cur.Title, "second update must not touch state")
	assert.True(t, s.IsInFlight(UpdateKey("1")))
	select {
	case extra := <-f.calls:
		t.Fatalf("unexpected %s call", extra.method)
	default:
	}

	c.reply <- reply{err: errBackend}
	require.Error(t, await(t, first).err)
	cur, _ = s.Find("1")
	assert.Equal(t, "A", cur.Title, "rollback uses the first snapshot")
	assert.False(t, s.IsInFlight(UpdateKey("1")))

	// The key is free again.
	again := async(func() result { tk, err := s.Update(context.Background(), "1", task.Patch{}.WithTitle("D")); return result{tk, err} })
	f.next(t, "update").reply <- reply{task: task.Task{ID: "1", Title: "D"}}
	require.NoError(t, await(t, again).err)
}

func TestUpdate_DifferentIDsRunConcurrently(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Title: "A"}, task.Task{ID: "2", Title: "B"})
	u1 := async(func() result { tk, err := s.Update(context.Background(), "1", task.Patch{}.WithTitle("A2")); return result{tk, err} })
	c1 := f.next(t, "update")
	d2 := async(func() error { return s.Remove(context.Background(), "2") })
	c2 := f.next(t, "remove")

	c2.reply <- reply{}
	c1.reply <- reply{task: task.Task{ID: "1", Title: "A2"}}
	require.NoError(t, await(t, u1).err)
	require.NoError(t, await(t, d2))
	assert.Equal(t, []task.Task{{ID: "1", Title: "A2"}}, s.Snapshot().Tasks)
}

func TestUpdate_UnknownID(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Title: "A"})
	done := async(func() result { tk, err := s.Update(context.Background(), "ghost", task.Patch{}.WithTitle("B")); return result{tk, err} })
	f.next(t, "update").reply <- reply{task: task.Task{ID: "ghost", Title: "B"}}
	require.NoError(t, await(t, done).err)
	assert.Equal(t, []task.Task{{ID: "1", Title: "A"}}, s.Snapshot().Tasks)
}

func TestMissingID(t *testing.T) {
	s := New(newFakeAPI(), WithInitialLoad(false))
	_, err := s.Update(context.Background(), "", task.Patch{})
	assert.ErrorIs(t, err, ErrMissingID)
	assert.ErrorIs(t, s.Remove(context.Background(), ""), ErrMissingID)
	_, err = s.Toggle(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingID)
	assert.NoError(t, s.Snapshot().Err)
}

func TestRemove_Confirm(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1"}, task.Task{ID: "2"})
	done := async(func() error { return s.Remove(context.Background(), "2") })
	c := f.next(t, "remove")
	_, ok := s.Find("2")
	assert.False(t, ok, "removed before the server answers")
	assert.True(t, s.IsInFlight(DeleteKey("2")))

	c.reply <- reply{}
	require.NoError(t, await(t, done))
	assert.Equal(t, []task.Task{{ID: "1"}}, s.Snapshot().Tasks)
	assert.False(t, s.IsInFlight(DeleteKey("2")))
}

func TestRemove_Rollback(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1"}, task.Task{ID: "2", Title: "two"})
	done := async(func() error { return s.Remove(context.Background(), "2") })
	c := f.next(t, "remove")
	assert.Equal(t, "2", c.id)
	c.reply <- reply{err: errBackend}

	assert.ErrorIs(t, await(t, done), errBackend)
	st := s.Snapshot()
	assert.Equal(t, []task.Task{{ID: "2", Title: "two"}, {ID: "1"}}, st.Tasks)
	assert.Equal(t, errBackend, st.Err)
	assert.False(t, s.IsInFlight(DeleteKey("2")))
}

func TestRemove_Deduplicated(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1"})
	first := async(func() error { return s.Remove(context.Background(), "1") })
	c := f.next(t, "remove")

	assert.ErrorIs(t, s.Remove(context.Background(), "1"), ErrInFlight)
	c.reply <- reply{}
	require.NoError(t, await(t, first))
	assert.Empty(t, s.Snapshot().Tasks)
}

func TestToggle(t *testing.T) {
	s, f := seeded(t, task.Task{ID: "1", Status: task.StatusPending})
	done := async(func() result { tk, err := s.Toggle(context.Background(), "1"); return result{tk, err} })
	c := f.next(t, "update")
	require.NotNil(t, c.patch.Status)
	assert.Equal(t, task.StatusCompleted, *c.patch.Status)
	assert.Nil(t, c.patch.Title)
	c.reply <- reply{task: task.Task{ID: "1", Status: task.StatusCompleted}}
	require.NoError(t, await(t, done).err)

	_, err := s.Toggle(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestResetError(t *testing.T) {
	s, f := seeded(t)
	done := async(func() error { return s.Refresh(context.Background()) })
	f.next(t, "list").reply <- reply{err: errors.New("boom")}
	require.Error(t, await(t, done))
	require.Error(t, s.Snapshot().Err)

	s.ResetError()
	assert.NoError(t, s.Snapshot().Err)
}

func TestChanges_Coalesce(t *testing.T) {
	s := New(&stableAPI{}, WithInitialLoad(false))
	for range 5 {
		s.ResetError()
	}
	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-s.Changes():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s, _ := seeded(t, task.Task{ID: "1", Title: "A"})
	st := s.Snapshot()
	st.Tasks[0].Title = "mutated"
	cur, _ := s.Find("1")
	assert.Equal(t, "A", cur.Title)
}
