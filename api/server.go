/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers and roles.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend, with credentials
  5. Verifier:   Token from cookie or Authorization header (jwtauth)

ROUTE GROUPS:
  /api/health           Liveness (public)
  /api/auth/*           Login/logout public, the rest authenticated
  /api/attendance/*     Punches and own records (employee), per-user (admin)
  /api/admin/*          Employee management and reports (admin)
  /api/employees/me     Own profile (employee)
  /api/scenarios/*      Demo scenarios (only when enabled)
  /uploads/*            Stored punch photos (authenticated)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Verifier, Authenticate, RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/worktime-engine/worktime"
)

// RouterConfig holds the settings the router needs beyond the handler.
type RouterConfig struct {
	AllowedOrigins  []string
	PhotoDir        string
	PhotoURLPrefix  string
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(h.Auth.Verifier())

	authed := func(r chi.Router) chi.Router { return r.With(h.Auth.Authenticate) }
	adminOnly := RequireRole(worktime.RoleAdmin)
	employeeOnly := RequireRole(worktime.RoleEmployee)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			authed(r).Get("/me", h.Me)
			authed(r).With(adminOnly).Post("/employees", h.CreateEmployee)
			authed(r).With(adminOnly).Post("/create-employee", h.CreateEmployee)
		})

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Use(h.Auth.Authenticate)
			r.With(employeeOnly).Post("/punch-in", h.PunchIn)
			r.With(employeeOnly).Post("/punch-out", h.PunchOut)
			r.With(employeeOnly).Get("/my-attendance", h.MyAttendance)
			r.With(adminOnly).Get("/{userId}", h.UserAttendance)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.Auth.Authenticate, adminOnly)
			r.Get("/employees", h.ListEmployees)
			r.Put("/employees/{userId}", h.UpdateEmployee)
			r.Get("/attendance", h.AttendanceByDate)
			r.Get("/attendance/{userId}/history", h.History)
			r.Get("/attendance/{userId}/month", h.MonthAttendance)
			r.Put("/attendance/{attendanceId}/edit", h.EditPunch)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Use(h.Auth.Authenticate, employeeOnly)
			r.Get("/me", h.MyProfile)
		})

		// Scenario routes
		if cfg.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	// Serve stored photos
	if cfg.PhotoDir != "" {
		prefix := cfg.PhotoURLPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.PhotoDir)))
		authed(r).Get(prefix+"/*", fileServer.ServeHTTP)
	}

	return r
}
