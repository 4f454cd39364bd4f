// Package server assembles the task service HTTP stack.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/taskdeck/internal/config"
	"github.com/kazz187/taskdeck/internal/event"
	"github.com/kazz187/taskdeck/internal/task"
	"github.com/kazz187/taskdeck/pkg/cerr"
	"github.com/kazz187/taskdeck/pkg/clog"
)

type Server struct {
	server      *http.Server
	env         *config.ServerEnv
	taskServer  *task.Server
	eventServer *event.Server
}

func NewServer(
	env *config.ServerEnv,
	taskServer *task.Server,
	eventServer *event.Server,
) *Server {
	return &Server{
		env:         env,
		taskServer:  taskServer,
		eventServer: eventServer,
	}
}

// Handler returns the full handler chain: CORS, h2c and the routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Handle("/health", &HealthChecker{})

	r.Route("/api", func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware())

		// The event stream writes to the connection itself.
		s.eventServer.Routes(r)

		r.Group(func(r chi.Router) {
			r.Use(cerr.NewJSONResponseChiMiddleware())
			s.taskServer.Routes(r)
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
		})
	})

	origins := []string{"*"}
	if len(s.env.CORSOrigins) > 0 {
		origins = s.env.CORSOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return h2c.NewHandler(c.Handler(r), &http2.Server{})
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of
// every request, so cancelling it also ends open event streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
