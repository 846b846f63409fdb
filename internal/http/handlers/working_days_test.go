package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casavisita/platform/internal/schedule"
)

type fakeWorkingHours struct {
	upsertAgent int64
	upsertDay   schedule.Weekday
	upsertSlots []schedule.TimeSlot
	upsertOff   bool
	upsertErr   error

	deletedDay  schedule.Weekday
	deleteErr   error
	slotStart   float64
	slotEnd     float64
	deleteSlots error
}

func (f *fakeWorkingHours) Availability(_ context.Context, _ int64) (map[schedule.Weekday][]schedule.TimeSlot, error) {
	return map[schedule.Weekday][]schedule.TimeSlot{
		2: {{StartTime: 9, EndTime: 13}},
	}, nil
}

func (f *fakeWorkingHours) UpsertDay(_ context.Context, agentID int64, day schedule.Weekday, slots []schedule.TimeSlot, isOffDay bool) error {
	f.upsertAgent = agentID
	f.upsertDay = day
	f.upsertSlots = slots
	f.upsertOff = isOffDay
	return f.upsertErr
}

func (f *fakeWorkingHours) DeleteDay(_ context.Context, _ int64, day schedule.Weekday) error {
	f.deletedDay = day
	return f.deleteErr
}

func (f *fakeWorkingHours) DeleteSlot(_ context.Context, _ int64, _ schedule.Weekday, start, end float64) error {
	f.slotStart = start
	f.slotEnd = end
	return f.deleteSlots
}

func workingDaysRouter(hours *fakeWorkingHours) http.Handler {
	h := NewWorkingDaysHandler(hours, nil)
	r := chi.NewRouter()
	r.Get("/agents/{agentID}/working-days", h.GetWorkingDays)
	r.Put("/agents/{agentID}/working-days/{weekday}", h.UpsertWorkingDay)
	r.Delete("/agents/{agentID}/working-days/{weekday}", h.DeleteWorkingDay)
	r.Delete("/agents/{agentID}/working-days/{weekday}/slots", h.DeleteSlot)
	return r
}

func TestGetWorkingDays(t *testing.T) {
	router := workingDaysRouter(&fakeWorkingHours{})

	req := httptest.NewRequest(http.MethodGet, "/agents/7/working-days", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"startTime":9`)
}

func TestUpsertWorkingDay(t *testing.T) {
	hours := &fakeWorkingHours{}
	router := workingDaysRouter(hours)

	body := `{"slots":[{"startTime":9,"endTime":13},{"startTime":14,"endTime":18}]}`
	req := httptest.NewRequest(http.MethodPut, "/agents/7/working-days/2", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), hours.upsertAgent)
	assert.Equal(t, schedule.Weekday(2), hours.upsertDay)
	require.Len(t, hours.upsertSlots, 2)
	assert.Equal(t, 14.0, hours.upsertSlots[1].StartTime)
	assert.False(t, hours.upsertOff, "off flag defaults to false")
}

func TestUpsertWorkingDayOff(t *testing.T) {
	hours := &fakeWorkingHours{}
	router := workingDaysRouter(hours)

	body := `{"slots":[{"startTime":9,"endTime":13}],"isOffDay":true}`
	req := httptest.NewRequest(http.MethodPut, "/agents/7/working-days/2", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, hours.upsertOff)
	require.Len(t, hours.upsertSlots, 1, "slot template travels with the flag")
	assert.Contains(t, rec.Body.String(), `"isOffDay":true`)
}

func TestUpsertWorkingDayValidationError(t *testing.T) {
	hours := &fakeWorkingHours{upsertErr: schedule.ErrUnderOneHour}
	router := workingDaysRouter(hours)

	body := `{"slots":[{"startTime":9,"endTime":9.5}]}`
	req := httptest.NewRequest(http.MethodPut, "/agents/7/working-days/2", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertWorkingDayBadWeekday(t *testing.T) {
	router := workingDaysRouter(&fakeWorkingHours{upsertErr: schedule.ErrBadWeekday})

	body := `{"slots":[{"startTime":9,"endTime":13}]}`
	req := httptest.NewRequest(http.MethodPut, "/agents/7/working-days/8", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteWorkingDay(t *testing.T) {
	hours := &fakeWorkingHours{}
	router := workingDaysRouter(hours)

	req := httptest.NewRequest(http.MethodDelete, "/agents/7/working-days/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, schedule.Weekday(2), hours.deletedDay)
}

func TestDeleteWorkingDayNotFound(t *testing.T) {
	router := workingDaysRouter(&fakeWorkingHours{deleteErr: schedule.ErrDayNotFound})

	req := httptest.NewRequest(http.MethodDelete, "/agents/7/working-days/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSlot(t *testing.T) {
	hours := &fakeWorkingHours{}
	router := workingDaysRouter(hours)

	req := httptest.NewRequest(http.MethodDelete, "/agents/7/working-days/2/slots?start=9&end=13", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 9.0, hours.slotStart)
	assert.Equal(t, 13.0, hours.slotEnd)
}

func TestDeleteSlotMissingParams(t *testing.T) {
	router := workingDaysRouter(&fakeWorkingHours{})

	req := httptest.NewRequest(http.MethodDelete, "/agents/7/working-days/2/slots", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSlotNotFound(t *testing.T) {
	router := workingDaysRouter(&fakeWorkingHours{deleteSlots: schedule.ErrSlotNotFound})

	req := httptest.NewRequest(http.MethodDelete, "/agents/7/working-days/2/slots?start=9&end=13", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
