// Package handlers exposes the public widget and token-link endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/casavisita/platform/internal/appointments"
	"github.com/casavisita/platform/internal/availability"
	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/internal/token"
	"github.com/casavisita/platform/pkg/logging"
)

// BookingService is the lifecycle surface the handler drives.
type BookingService interface {
	Create(ctx context.Context, in appointments.CreateInput) (*appointments.CreateResult, error)
	UpdateStatus(ctx context.Context, tokenString string) (*appointments.Appointment, error)
	Reschedule(ctx context.Context, tokenString, day string, hour float64) (*appointments.Appointment, error)
	DetailsFromToken(ctx context.Context, tokenString string) (*appointments.Details, error)
	History(ctx context.Context, appointmentID int64) ([]appointments.StatusHistory, error)
}

// AvailabilityService computes widget calendars.
type AvailabilityService interface {
	ResidenceAvailability(ctx context.Context, agencyID, residenceID int64) (*availability.ResidenceCalendar, error)
	DisplayWindow(ctx context.Context, residenceID int64) (float64, float64, error)
}

// BookingHandler serves the public booking widget and email-link endpoints.
type BookingHandler struct {
	booking      BookingService
	availability AvailabilityService
	logger       *logging.Logger
}

func NewBookingHandler(booking BookingService, avail AvailabilityService, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{booking: booking, availability: avail, logger: logger}
}

// CreateAppointmentRequest is the widget's booking form.
type CreateAppointmentRequest struct {
	Date     string  `json:"date"`
	Hour     float64 `json:"hour"`
	Duration float64 `json:"duration,omitempty"`
	Notes    string  `json:"notes,omitempty"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone,omitempty"`
}

// CreateAppointment books a viewing.
// POST /widget/{agencyID}/residences/{residenceID}/appointments
func (h *BookingHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	agencyID, residenceID, ok := widgetIDs(w, r)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Date == "" || req.Name == "" || req.Email == "" {
		jsonError(w, "date, name and email are required", http.StatusBadRequest)
		return
	}

	result, err := h.booking.Create(r.Context(), appointments.CreateInput{
		Date:        req.Date,
		Hour:        req.Hour,
		Duration:    req.Duration,
		Notes:       req.Notes,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		ResidenceID: residenceID,
		AgencyID:    agencyID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.Appointment)
}

// GetAvailability returns the residence's booking calendar.
// GET /widget/{agencyID}/residences/{residenceID}/availability
func (h *BookingHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	agencyID, residenceID, ok := widgetIDs(w, r)
	if !ok {
		return
	}
	cal, err := h.availability.ResidenceAvailability(r.Context(), agencyID, residenceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// GetHours returns the hour bounds the widget renders its grid between.
// GET /widget/{agencyID}/residences/{residenceID}/hours
func (h *BookingHandler) GetHours(w http.ResponseWriter, r *http.Request) {
	_, residenceID, ok := widgetIDs(w, r)
	if !ok {
		return
	}
	minHour, maxHour, err := h.availability.DisplayWindow(r.Context(), residenceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"minHour": minHour, "maxHour": maxHour})
}

// TokenRequest carries a capability token from an email link.
type TokenRequest struct {
	Token string `json:"token"`
}

// UpdateStatus consumes a capability token.
// POST /appointments/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		jsonError(w, "token is required", http.StatusBadRequest)
		return
	}
	appt, err := h.booking.UpdateStatus(r.Context(), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// RescheduleRequest moves an appointment to a new day and hour.
type RescheduleRequest struct {
	Token string  `json:"token"`
	Day   string  `json:"day"`
	Hour  float64 `json:"hour"`
}

// Reschedule moves the appointment and re-enters the state machine.
// POST /appointments/reschedule
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.Day == "" {
		jsonError(w, "token and day are required", http.StatusBadRequest)
		return
	}
	appt, err := h.booking.Reschedule(r.Context(), req.Token, req.Day, req.Hour)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Details resolves the public read model behind a token link.
// GET /appointments/details?token=...
func (h *BookingHandler) Details(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		jsonError(w, "token is required", http.StatusBadRequest)
		return
	}
	details, err := h.booking.DetailsFromToken(r.Context(), tokenString)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// History returns the appointment's status audit trail.
// GET /appointments/{appointmentID}/history
func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "appointmentID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	history, err := h.booking.History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if history == nil {
		history = []appointments.StatusHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", status)
		return
	}
	jsonError(w, err.Error(), status)
}

func widgetIDs(w http.ResponseWriter, r *http.Request) (agencyID, residenceID int64, ok bool) {
	agencyID, err := strconv.ParseInt(chi.URLParam(r, "agencyID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid agency id", http.StatusBadRequest)
		return 0, 0, false
	}
	residenceID, err = strconv.ParseInt(chi.URLParam(r, "residenceID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid residence id", http.StatusBadRequest)
		return 0, 0, false
	}
	return agencyID, residenceID, true
}

// statusForError maps the domain's error taxonomy onto HTTP statuses:
// validation 400, bad token 401, unknown subject 404, state conflict 409.
func statusForError(err error) int {
	switch {
	case errors.Is(err, schedule.ErrStartAfterEnd),
		errors.Is(err, schedule.ErrStartEqualEnd),
		errors.Is(err, schedule.ErrOutOfBounds),
		errors.Is(err, schedule.ErrNotHalfHour),
		errors.Is(err, schedule.ErrUnderOneHour),
		errors.Is(err, schedule.ErrSlotsOverlap),
		errors.Is(err, schedule.ErrBadWeekday),
		errors.Is(err, appointments.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, token.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, appointments.ErrNotFound),
		errors.Is(err, directory.ErrAgencyNotFound),
		errors.Is(err, directory.ErrAgentNotFound),
		errors.Is(err, directory.ErrClientNotFound),
		errors.Is(err, directory.ErrResidenceNotFound),
		errors.Is(err, schedule.ErrDayNotFound),
		errors.Is(err, schedule.ErrSlotNotFound):
		return http.StatusNotFound
	case errors.Is(err, appointments.ErrNotAvailable),
		errors.Is(err, appointments.ErrNoAvailableAgents),
		errors.Is(err, appointments.ErrAlreadyConfirmed),
		errors.Is(err, appointments.ErrAlreadyCancelled),
		errors.Is(err, appointments.ErrAlreadyReprogrammed),
		errors.Is(err, appointments.ErrAlreadyAccepted),
		errors.Is(err, appointments.ErrAlreadyRejected),
		errors.Is(err, appointments.ErrAlreadyCancelReprogrammed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
