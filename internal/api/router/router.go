// Package router assembles the HTTP surface: the public booking widget,
// the email-link endpoints and the agency back office.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/casavisita/platform/internal/http/handlers"
	httpmiddleware "github.com/casavisita/platform/internal/http/middleware"
	"github.com/casavisita/platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Booking            *handlers.BookingHandler
	WorkingDays        *handlers.WorkingDaysHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Public widget, embedded on agency websites.
	if cfg.Booking != nil {
		r.Route("/widget/{agencyID}/residences/{residenceID}", func(widget chi.Router) {
			widget.Get("/availability", cfg.Booking.GetAvailability)
			widget.Get("/hours", cfg.Booking.GetHours)
			widget.Post("/appointments", cfg.Booking.CreateAppointment)
		})

		// Email-link endpoints, authorized by the token itself.
		r.Route("/appointments", func(appt chi.Router) {
			appt.Post("/status", cfg.Booking.UpdateStatus)
			appt.Post("/reschedule", cfg.Booking.Reschedule)
			appt.Get("/details", cfg.Booking.Details)
			appt.Get("/{appointmentID}/history", cfg.Booking.History)
		})
	}

	// Agency back office.
	if cfg.WorkingDays != nil {
		r.Route("/agents/{agentID}/working-days", func(agent chi.Router) {
			agent.Get("/", cfg.WorkingDays.GetWorkingDays)
			agent.Put("/{weekday}", cfg.WorkingDays.UpsertWorkingDay)
			agent.Delete("/{weekday}", cfg.WorkingDays.DeleteWorkingDay)
			agent.Delete("/{weekday}/slots", cfg.WorkingDays.DeleteSlot)
		})
	}

	return r
}
