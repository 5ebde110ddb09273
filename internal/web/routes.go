package web

import (
	"github.com/facekiosk/facekiosk/internal/web/handlers"
	"github.com/facekiosk/facekiosk/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures the API route tree.
func (s *Server) setupRoutes() {
	staffHandler := handlers.NewStaffHandler(
		s.deps.Repo, s.deps.Encoder, s.config.Database.CascadeDelete, s.deps.RefreshRoster)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Repo)
	recognizeHandler := handlers.NewRecognizeHandler(
		s.deps.Encoder, s.deps.Matcher, s.deps.Repo,
		s.deps.Controller.Events(), s.config.Terminal.MinShift)
	terminalHandler := handlers.NewTerminalHandler(s.deps.Controller)
	syncHandler := handlers.NewSyncHandler(s.deps.Bridge)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// The kiosk display polls this stream without credentials.
		r.Get("/terminal/events", terminalHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(s.config.Web.APIToken))

			r.Route("/staff", func(r chi.Router) {
				r.Get("/", staffHandler.List)
				r.Post("/", staffHandler.Create)
				r.Get("/{id}", staffHandler.Get)
				r.Put("/{id}", staffHandler.Update)
				r.Delete("/{id}", staffHandler.Delete)
				r.Post("/{id}/encoding", staffHandler.Enroll)
				r.Get("/{id}/attendance", attendanceHandler.ListByStaff)
			})

			r.Route("/attendance", func(r chi.Router) {
				r.Get("/", attendanceHandler.ListByDay)
				r.Get("/open", attendanceHandler.ListOpen)
				r.Post("/check-in", attendanceHandler.CheckIn)
				r.Post("/check-out", attendanceHandler.CheckOut)
				r.Post("/close-day", attendanceHandler.CloseDay)
			})

			r.Post("/recognize", recognizeHandler.Recognize)

			r.Get("/terminal/status", terminalHandler.Status)

			r.Post("/sync", syncHandler.Trigger)
			r.Get("/sync/status", syncHandler.LastReport)
		})
	})
}
