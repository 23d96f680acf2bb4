package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPMetrics records served requests by route template.
type HTTPMetrics interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

type RouterOptions struct {
	// AuthMiddleware establishes the request subject. Required for every route except
	// /healthz and POST /users.
	AuthMiddleware func(http.Handler) http.Handler
	Logger         *slog.Logger
	Metrics        HTTPMetrics
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger, opts.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/users", s.RegisterUser)

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}

		r.Get("/users/me", s.GetMe)
		r.Patch("/users/me", s.UpdateMe)

		r.Route("/families", func(r chi.Router) {
			r.Post("/", s.CreateFamily)
			r.Get("/", s.ListMyFamilies)

			r.Route("/{familyId}", func(r chi.Router) {
				r.Get("/", s.GetFamily)
				r.Patch("/", s.RenameFamily)
				r.Delete("/", s.DeleteFamily)

				r.Get("/members", s.ListMembers)
				r.Post("/members", s.AddMember)
				r.Patch("/members/{userId}", s.UpdateMembership)
				r.Delete("/members/{userId}", s.RemoveMember)

				r.Post("/leave", s.LeaveFamily)
				r.Post("/owners", s.AddOwner)
				r.Post("/ownership-transfer", s.TransferOwnership)
			})
		})

		r.Get("/memberships/{membershipId}", s.GetMembership)

		r.Post("/health-logs", s.RecordHealthLog)
		r.Get("/health-logs", s.ListHealthLogs)
		r.Get("/health-logs/{logId}", s.GetHealthLog)

		r.Get("/reminders", s.ListReminders)
		r.Get("/reminders/{metricType}", s.GetReminder)
		r.Put("/reminders/{metricType}", s.UpsertReminder)
		r.Post("/reminders/{reminderId}/trigger", s.TriggerReminder)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

func accessLog(logger *slog.Logger, m HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				elapsed := time.Since(start)
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := "unmatched"
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				logger.InfoContext(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"route", route,
					"status", status,
					"duration", elapsed,
					"request_id", middleware.GetReqID(r.Context()),
				)
				if m != nil {
					m.ObserveHTTPRequest(r.Method, route, status, elapsed)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
