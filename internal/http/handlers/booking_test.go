package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casavisita/platform/internal/appointments"
	"github.com/casavisita/platform/internal/availability"
	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/internal/token"
)

type fakeBookingService struct {
	createInput appointments.CreateInput
	createErr   error

	updateToken string
	updateErr   error

	rescheduleDay  string
	rescheduleHour float64
	rescheduleErr  error

	historyRows []appointments.StatusHistory
	historyErr  error
}

func (f *fakeBookingService) Create(_ context.Context, in appointments.CreateInput) (*appointments.CreateResult, error) {
	f.createInput = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &appointments.CreateResult{
		Appointment: &appointments.Appointment{ID: 42, Date: in.Date, Hour: in.Hour, Status: appointments.StatusPending},
	}, nil
}

func (f *fakeBookingService) UpdateStatus(_ context.Context, tokenString string) (*appointments.Appointment, error) {
	f.updateToken = tokenString
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &appointments.Appointment{ID: 42, Status: appointments.StatusConfirmed}, nil
}

func (f *fakeBookingService) Reschedule(_ context.Context, tokenString, day string, hour float64) (*appointments.Appointment, error) {
	f.updateToken = tokenString
	f.rescheduleDay = day
	f.rescheduleHour = hour
	if f.rescheduleErr != nil {
		return nil, f.rescheduleErr
	}
	return &appointments.Appointment{ID: 42, Date: day, Hour: hour, Status: appointments.StatusReprogrammed}, nil
}

func (f *fakeBookingService) DetailsFromToken(_ context.Context, _ string) (*appointments.Details, error) {
	return &appointments.Details{Status: appointments.StatusPending, ResidenceName: "Casa Azul"}, nil
}

func (f *fakeBookingService) History(_ context.Context, _ int64) ([]appointments.StatusHistory, error) {
	return f.historyRows, f.historyErr
}

type fakeAvailabilityService struct {
	err error
}

func (f *fakeAvailabilityService) ResidenceAvailability(_ context.Context, _, _ int64) (*availability.ResidenceCalendar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &availability.ResidenceCalendar{
		Name: "Casa Azul",
		Availability: map[string][]schedule.TimeSlot{
			"06-03-2026": {{StartTime: 9, EndTime: 10}},
		},
	}, nil
}

func (f *fakeAvailabilityService) DisplayWindow(_ context.Context, _ int64) (float64, float64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	return 9, 18, nil
}

func bookingRouter(svc *fakeBookingService, avail *fakeAvailabilityService) http.Handler {
	h := NewBookingHandler(svc, avail, nil)
	r := chi.NewRouter()
	r.Post("/widget/{agencyID}/residences/{residenceID}/appointments", h.CreateAppointment)
	r.Get("/widget/{agencyID}/residences/{residenceID}/availability", h.GetAvailability)
	r.Get("/widget/{agencyID}/residences/{residenceID}/hours", h.GetHours)
	r.Post("/appointments/status", h.UpdateStatus)
	r.Post("/appointments/reschedule", h.Reschedule)
	r.Get("/appointments/details", h.Details)
	r.Get("/appointments/{appointmentID}/history", h.History)
	return r
}

func TestCreateAppointment(t *testing.T) {
	svc := &fakeBookingService{}
	router := bookingRouter(svc, &fakeAvailabilityService{})

	body := `{"date":"6-3-2026","hour":10,"name":"Ana","email":"ana@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/widget/5/residences/10/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(5), svc.createInput.AgencyID)
	assert.Equal(t, int64(10), svc.createInput.ResidenceID)
	assert.Equal(t, "Ana", svc.createInput.Name)

	var appt appointments.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	assert.Equal(t, int64(42), appt.ID)
}

func TestCreateAppointmentMissingFields(t *testing.T) {
	router := bookingRouter(&fakeBookingService{}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodPost, "/widget/5/residences/10/appointments",
		strings.NewReader(`{"date":"6-3-2026","hour":10}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAppointmentSlotTaken(t *testing.T) {
	svc := &fakeBookingService{createErr: appointments.ErrNotAvailable}
	router := bookingRouter(svc, &fakeAvailabilityService{})

	body := `{"date":"6-3-2026","hour":10,"name":"Ana","email":"ana@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/widget/5/residences/10/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_APPOINTMENT_NOT_AVAILABLE")
}

func TestCreateAppointmentBadAgencyID(t *testing.T) {
	router := bookingRouter(&fakeBookingService{}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodPost, "/widget/nope/residences/10/appointments",
		strings.NewReader(`{"date":"6-3-2026","name":"Ana","email":"a@b.c"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAvailability(t *testing.T) {
	router := bookingRouter(&fakeBookingService{}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodGet, "/widget/5/residences/10/availability", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var cal availability.ResidenceCalendar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cal))
	assert.Equal(t, "Casa Azul", cal.Name)
	assert.Len(t, cal.Availability["06-03-2026"], 1)
}

func TestGetHours(t *testing.T) {
	router := bookingRouter(&fakeBookingService{}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodGet, "/widget/5/residences/10/hours", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var window map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &window))
	assert.Equal(t, 9.0, window["minHour"])
	assert.Equal(t, 18.0, window["maxHour"])
}

func TestUpdateStatus(t *testing.T) {
	svc := &fakeBookingService{}
	router := bookingRouter(svc, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodPost, "/appointments/status", strings.NewReader(`{"token":"abc"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", svc.updateToken)
}

func TestUpdateStatusErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", token.ErrInvalidToken, http.StatusUnauthorized},
		{"unknown appointment", appointments.ErrNotFound, http.StatusNotFound},
		{"already confirmed", appointments.ErrAlreadyConfirmed, http.StatusConflict},
		{"bad action", appointments.ErrInvalidAction, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := bookingRouter(&fakeBookingService{updateErr: tc.err}, &fakeAvailabilityService{})

			req := httptest.NewRequest(http.MethodPost, "/appointments/status", strings.NewReader(`{"token":"abc"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestUpdateStatusMissingToken(t *testing.T) {
	router := bookingRouter(&fakeBookingService{}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodPost, "/appointments/status", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReschedule(t *testing.T) {
	svc := &fakeBookingService{}
	router := bookingRouter(svc, &fakeAvailabilityService{})

	body := `{"token":"abc","day":"9-3-2026","hour":15}`
	req := httptest.NewRequest(http.MethodPost, "/appointments/reschedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9-3-2026", svc.rescheduleDay)
	assert.Equal(t, 15.0, svc.rescheduleHour)
}

func TestDetails(t *testing.T) {
	router := bookingRouter(&fakeBookingService{}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodGet, "/appointments/details?token=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var details appointments.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "Casa Azul", details.ResidenceName)
}

func TestHistoryEmptyIsArray(t *testing.T) {
	router := bookingRouter(&fakeBookingService{}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodGet, "/appointments/42/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestInternalErrorIsOpaque(t *testing.T) {
	router := bookingRouter(&fakeBookingService{updateErr: assert.AnError}, &fakeAvailabilityService{})

	req := httptest.NewRequest(http.MethodPost, "/appointments/status", strings.NewReader(`{"token":"abc"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
