package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.service)
	trainHandler := handlers.NewTrainHandler(s.service, s.jobManager)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Plain requests get a timeout; SSE streams are bounded by the server's WriteTimeout.
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Get("/attendance", attendanceHandler.List)
			r.Get("/attendance.csv", attendanceHandler.Export)
			r.Get("/people", attendanceHandler.People)
			r.Get("/encodings", attendanceHandler.Encodings)
			r.Get("/config", configHandler.Get)

			r.Get("/train", trainHandler.List)
			r.Post("/train", trainHandler.Start)
			r.Get("/train/{jobId}", trainHandler.Status)
			r.Delete("/train/{jobId}", trainHandler.Cancel)
		})

		r.Get("/train/{jobId}/events", trainHandler.Events)
	})

	// Dashboard
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders())
		r.Handle("/*", static.Dashboard())
	})
}
