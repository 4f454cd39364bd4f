package event

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/taskdeck/internal/eventbus"
	"github.com/kazz187/taskdeck/pkg/clog"
)

const subscriberBuffer = 64

type Server struct {
	eventBus *eventbus.Bus
}

func NewServer(eventBus *eventbus.Bus) *Server {
	return &Server{eventBus: eventBus}
}

// Routes mounts the event stream. It writes to the connection directly and
// must not sit behind the cerr response middleware.
func (s *Server) Routes(r chi.Router) {
	r.Get("/stream/events", s.StreamEvents)
}

// StreamEvents writes one JSON event per line until the client goes away
// or the bus is closed. Query parameters narrow the stream:
//
//	type=task.created,task.deleted
//	task_id=01J...
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	typeFilter := make(map[eventbus.EventType]struct{})
	for _, t := range strings.Split(r.URL.Query().Get("type"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			typeFilter[eventbus.EventType(t)] = struct{}{}
		}
	}
	taskID := r.URL.Query().Get("task_id")

	subID, ch := s.eventBus.Subscribe(subscriberBuffer)
	defer s.eventBus.Unsubscribe(subID)
	clog.AddAttribute(ctx, "subscriber_id", subID)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		slog.WarnContext(ctx, "event stream cannot flush", "error", err)
		return
	}

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if len(typeFilter) > 0 {
				if _, match := typeFilter[ev.Type]; !match {
					continue
				}
			}
			if taskID != "" && ev.TaskID != taskID {
				continue
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
