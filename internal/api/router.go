package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/audit"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/principal"
	"github.com/hackgods/clinic-scheduling/internal/slots"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Manager
	Slots        *slots.Engine
	AuditLog     audit.Reader
	Clock        calendar.Clock
	JWTSecret    []byte
	Logger       zerolog.Logger

	// Readiness probes. Postgres is critical, Redis only degrades the service.
	Postgres Pinger
	Redis    Pinger

	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = calendar.SystemClock{}
	}
	h := &handlers{
		appointments: cfg.Appointments,
		availability: cfg.Availability,
		slots:        cfg.Slots,
		auditLog:     cfg.AuditLog,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(principal.Middleware(cfg.JWTSecret))

		r.Route("/practitioners/{id}", func(r chi.Router) {
			r.Get("/", h.getPractitioner)
			r.With(requireAdmin).Put("/active", h.setPractitionerActive)

			r.Get("/windows", h.listWindows)
			r.Post("/windows", h.createWindow)
			r.Delete("/windows/{windowID}", h.deleteWindow)

			r.Get("/unavailabilities", h.listUnavailabilities)
			r.Post("/unavailabilities", h.createUnavailability)
			r.Delete("/unavailabilities/{unavailabilityID}", h.deleteUnavailability)

			r.Get("/slots", h.daySlots)
			r.Get("/slots/week", h.weekSlots)
			r.Get("/planning", h.planning)
			r.Get("/planning.ics", h.planningICS)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.createAppointment)
			r.Get("/", h.listAppointments)
			r.Get("/{id}", h.getAppointment)
			r.Post("/{id}/confirm", h.confirmAppointment())
			r.Post("/{id}/cancel", h.cancelAppointment())
			r.Post("/{id}/no-show", h.markNoShow())
			r.Get("/{id}/reminders", h.appointmentReminders)
			r.Post("/{id}/cancellation-requests", h.requestCancellation)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/cancellation-requests", h.listCancellationRequests)
			r.Post("/cancellation-requests/{id}/accept", h.resolveCancellation(true))
			r.Post("/cancellation-requests/{id}/reject", h.resolveCancellation(false))
			r.Get("/reminders", h.listReminders)
			r.Get("/stats/monthly", h.monthlyStats)
			if cfg.AuditLog != nil {
				r.Get("/audit-logs", h.listAuditLogs)
			}
		})
	})

	return r
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !caller(r).IsAdmin() {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
