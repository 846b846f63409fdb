package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/pkg/logging"
)

// WorkingHoursService is the store surface behind the agent schedule API.
type WorkingHoursService interface {
	Availability(ctx context.Context, agentID int64) (map[schedule.Weekday][]schedule.TimeSlot, error)
	UpsertDay(ctx context.Context, agentID int64, day schedule.Weekday, slots []schedule.TimeSlot, isOffDay bool) error
	DeleteDay(ctx context.Context, agentID int64, day schedule.Weekday) error
	DeleteSlot(ctx context.Context, agentID int64, day schedule.Weekday, start, end float64) error
}

// WorkingDaysHandler manages an agent's weekly availability template.
type WorkingDaysHandler struct {
	hours  WorkingHoursService
	logger *logging.Logger
}

func NewWorkingDaysHandler(hours WorkingHoursService, logger *logging.Logger) *WorkingDaysHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WorkingDaysHandler{hours: hours, logger: logger}
}

// GetWorkingDays returns the agent's merged weekly template.
// GET /agents/{agentID}/working-days
func (h *WorkingDaysHandler) GetWorkingDays(w http.ResponseWriter, r *http.Request) {
	agentID, ok := agentID(w, r)
	if !ok {
		return
	}
	week, err := h.hours.Availability(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}

// UpsertWorkingDayRequest replaces one weekday's slot list. An off day keeps
// its slots but offers no availability.
type UpsertWorkingDayRequest struct {
	Slots    []schedule.TimeSlot `json:"slots"`
	IsOffDay bool                `json:"isOffDay"`
}

// UpsertWorkingDay replaces the slot list for one weekday.
// PUT /agents/{agentID}/working-days/{weekday}
func (h *WorkingDaysHandler) UpsertWorkingDay(w http.ResponseWriter, r *http.Request) {
	agentID, ok := agentID(w, r)
	if !ok {
		return
	}
	day, ok := weekday(w, r)
	if !ok {
		return
	}

	var req UpsertWorkingDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := h.hours.UpsertDay(r.Context(), agentID, day, req.Slots, req.IsOffDay); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weekday": day, "slots": req.Slots, "isOffDay": req.IsOffDay})
}

// DeleteWorkingDay removes a weekday and its slots from the template.
// DELETE /agents/{agentID}/working-days/{weekday}
func (h *WorkingDaysHandler) DeleteWorkingDay(w http.ResponseWriter, r *http.Request) {
	agentID, ok := agentID(w, r)
	if !ok {
		return
	}
	day, ok := weekday(w, r)
	if !ok {
		return
	}
	if err := h.hours.DeleteDay(r.Context(), agentID, day); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSlot removes one slot, identified by its exact range.
// DELETE /agents/{agentID}/working-days/{weekday}/slots?start=9&end=12
func (h *WorkingDaysHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	agentID, ok := agentID(w, r)
	if !ok {
		return
	}
	day, ok := weekday(w, r)
	if !ok {
		return
	}
	start, err1 := strconv.ParseFloat(r.URL.Query().Get("start"), 64)
	end, err2 := strconv.ParseFloat(r.URL.Query().Get("end"), 64)
	if err1 != nil || err2 != nil {
		jsonError(w, "start and end query parameters are required", http.StatusBadRequest)
		return
	}
	if err := h.hours.DeleteSlot(r.Context(), agentID, day, start, end); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkingDaysHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", status)
		return
	}
	jsonError(w, err.Error(), status)
}

func agentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "agentID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid agent id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func weekday(w http.ResponseWriter, r *http.Request) (schedule.Weekday, bool) {
	day, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil {
		jsonError(w, "invalid weekday", http.StatusBadRequest)
		return 0, false
	}
	return schedule.Weekday(day), true
}
