package task

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/taskdeck/internal/eventbus"
	"github.com/kazz187/taskdeck/pkg/cerr"
	"github.com/kazz187/taskdeck/pkg/clog"
)

// maxBodyBytes bounds request bodies accepted by the task endpoints.
const maxBodyBytes = 1 << 20

type Server struct {
	repo     Repository
	eventBus *eventbus.Bus
	now      func() time.Time
}

func NewServer(repo Repository, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:     repo,
		eventBus: eventBus,
		now:      time.Now,
	}
}

// Routes mounts the task endpoints. Handlers report through the cerr
// response receiver, so the router must use cerr.NewJSONResponseChiMiddleware.
func (s *Server) Routes(r chi.Router) {
	r.Get("/tasks", s.ListTasks)
	r.Post("/tasks", s.CreateTask)
	r.Put("/tasks/{id}", s.UpdateTask)
	r.Delete("/tasks/{id}", s.DeleteTask)
}

func (s *Server) ListTasks(_ http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tasks, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttribute(ctx, "task_count", len(tasks))
	cerr.SetJSONResponse(ctx, tasks)
}

func (s *Server) CreateTask(_ http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var draft Draft
	if err := decodeBody(r, &draft); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	draft = draft.Normalize()
	if draft.Title == "" {
		cerr.SetJSONError(ctx, cerr.NewInvalidField("title", "title is required"))
		return
	}
	if !draft.Status.Valid() {
		cerr.SetJSONError(ctx, invalidStatus(draft.Status))
		return
	}

	now := s.now()
	t := &Task{
		ID:          ulid.Make().String(),
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttribute(ctx, "task_id", t.ID)
	s.eventBus.PublishNew(eventbus.TaskCreated, t.ID)
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, t)
}

func (s *Server) UpdateTask(_ http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	clog.AddAttribute(ctx, "task_id", id)

	var patch Patch
	if err := decodeBody(r, &patch); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			cerr.SetJSONError(ctx, cerr.NewInvalidField("title", "title must not be empty"))
			return
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}
	if patch.Status != nil && !patch.Status.Valid() {
		cerr.SetJSONError(ctx, invalidStatus(*patch.Status))
		return
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	updated := patch.Apply(*current)
	updated.ID = current.ID
	updated.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, &updated); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.TaskUpdated, id)
	cerr.SetJSONResponse(ctx, updated)
}

func (s *Server) DeleteTask(_ http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	clog.AddAttribute(ctx, "task_id", id)

	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.TaskDeleted, id)
	cerr.SetNoContent(ctx)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid JSON body", err)
	}
	return nil
}

func invalidStatus(s Status) *cerr.Error {
	return cerr.NewInvalidField("status", fmt.Sprintf("status must be %q or %q, got %q", StatusPending, StatusCompleted, s))
}
