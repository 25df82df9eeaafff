package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/handlers"
	"github.com/taskflow/apiserver/internal/services"
)

// RouterOptions carries the services mounted by NewRouter.
type RouterOptions struct {
	Logger         zerolog.Logger
	Gate           *auth.Gate
	UserService    *services.UserService
	TaskService    *services.TaskService
	StatsService   *services.StatsService
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter assembles the HTTP API. All application routes live under /api.
func NewRouter(opts RouterOptions) chi.Router {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		hlog.NewHandler(opts.Logger),
		requestIDLogger,
		hlog.RemoteAddrHandler("ip"),
		hlog.AccessHandler(accessLog),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		cors.Handler(corsOptions(opts.AllowedOrigins)),
	)

	requireAuth := handlers.RequireAuth(opts.Gate)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, opts.UserService, requireAuth)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, opts.UserService, opts.StatsService, requireAuth)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, opts.UserService, requireAuth)
		})
		r.Route("/tasks", func(r chi.Router) {
			handlers.TaskRouter(r, opts.TaskService, requireAuth)
		})
	})

	return router
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
