package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/schedule"
)

type fakeDirectory struct {
	residence *directory.Residence
	agents    []directory.Agent
	cfg       directory.AgencyConfig
}

func (f *fakeDirectory) ResidenceByID(_ context.Context, id, agencyID int64) (*directory.Residence, error) {
	return f.residence, nil
}

func (f *fakeDirectory) ServingAgents(_ context.Context, _ int64) ([]directory.Agent, error) {
	return f.agents, nil
}

func (f *fakeDirectory) Config(_ context.Context, _ int64) (directory.AgencyConfig, error) {
	return f.cfg, nil
}

type fakeHours struct {
	weeks map[int64]map[schedule.Weekday][]schedule.TimeSlot
}

func (f *fakeHours) Availability(_ context.Context, agentID int64) (map[schedule.Weekday][]schedule.TimeSlot, error) {
	week := f.weeks[agentID]
	if week == nil {
		week = map[schedule.Weekday][]schedule.TimeSlot{}
	}
	return week, nil
}

func (f *fakeHours) MinMaxHours(_ context.Context, agentIDs []int64) (float64, float64, error) {
	minHour, maxHour := 24.0, 0.0
	seen := false
	for _, id := range agentIDs {
		for _, slots := range f.weeks[id] {
			if len(slots) == 0 {
				return 0, 24, nil
			}
			for _, slot := range slots {
				seen = true
				if slot.StartTime < minHour {
					minHour = slot.StartTime
				}
				if slot.EndTime > maxHour {
					maxHour = slot.EndTime
				}
			}
		}
	}
	if !seen {
		return 0, 24, nil
	}
	return minHour, maxHour, nil
}

type fakeBookings struct {
	external []Booking
	local    []Booking
}

func (f *fakeBookings) AgentBookings(_ context.Context, _ []int64, _ int64) ([]Booking, error) {
	return f.external, nil
}

func (f *fakeBookings) ResidenceBookings(_ context.Context, _ int64) ([]Booking, error) {
	return f.local, nil
}

// Thursday; the one-day horizon lands on Friday 06-03-2026 (weekday 6).
var testNow = time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)

const friday = "06-03-2026"

func newTestService(dir *fakeDirectory, hours *fakeHours, bookings *fakeBookings) *Service {
	svc := NewService(dir, hours, bookings, nil, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func singleAgentFixture(slots ...schedule.TimeSlot) (*fakeDirectory, *fakeHours) {
	dir := &fakeDirectory{
		residence: &directory.Residence{ID: 10, AgencyID: 5, Name: "Villa Aurora"},
		agents:    []directory.Agent{{ID: 1, AgencyID: 5, Name: "Alice", IsActive: true}},
		cfg:       directory.AgencyConfig{MinScheduleDays: 1, MaxScheduleDays: 1},
	}
	hours := &fakeHours{weeks: map[int64]map[schedule.Weekday][]schedule.TimeSlot{
		1: {6: slots},
	}}
	return dir, hours
}

func TestResidenceAvailabilityEnvelope(t *testing.T) {
	dir := &fakeDirectory{
		residence: &directory.Residence{ID: 10, AgencyID: 5, Name: "Villa Aurora"},
		agents: []directory.Agent{
			{ID: 1, Name: "Alice", IsActive: true},
			{ID: 2, Name: "Bruno", IsActive: true},
		},
		cfg: directory.AgencyConfig{MinScheduleDays: 1, MaxScheduleDays: 1},
	}
	hours := &fakeHours{weeks: map[int64]map[schedule.Weekday][]schedule.TimeSlot{
		1: {6: {{StartTime: 9, EndTime: 12}}},
		2: {6: {{StartTime: 11, EndTime: 14}}},
	}}
	svc := newTestService(dir, hours, &fakeBookings{})

	cal, err := svc.ResidenceAvailability(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Equal(t, "Villa Aurora", cal.Name)

	assert.Equal(t, []schedule.TimeSlot{
		{StartTime: 9, EndTime: 10},
		{StartTime: 10, EndTime: 11},
		{StartTime: 11, EndTime: 12},
		{StartTime: 12, EndTime: 13},
		{StartTime: 13, EndTime: 14},
	}, cal.Availability[friday])
}

func TestResidenceAvailabilityClosedDay(t *testing.T) {
	dir, hours := singleAgentFixture() // no Friday slots
	svc := newTestService(dir, hours, &fakeBookings{})

	cal, err := svc.ResidenceAvailability(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Empty(t, cal.Availability[friday])
	assert.NotNil(t, cal.Availability[friday], "closed day is an empty list, not a missing key")
}

func TestResidenceAvailabilitySubtractsCrossResidenceLoad(t *testing.T) {
	dir, hours := singleAgentFixture(schedule.TimeSlot{StartTime: 9, EndTime: 13})
	bookings := &fakeBookings{external: []Booking{
		{ResidenceID: 99, Date: "6-3-2026", Hour: 10, Duration: 1, Live: true},
	}}
	svc := newTestService(dir, hours, bookings)

	cal, err := svc.ResidenceAvailability(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []schedule.TimeSlot{
		{StartTime: 9, EndTime: 10},
		{StartTime: 11, EndTime: 12},
		{StartTime: 12, EndTime: 13},
	}, cal.Availability[friday], "other-residence commitment removes the 10-11 slot")
}

func TestResidenceAvailabilityMarksLocalBookings(t *testing.T) {
	dir, hours := singleAgentFixture(schedule.TimeSlot{StartTime: 9, EndTime: 12})
	bookings := &fakeBookings{local: []Booking{
		{ResidenceID: 10, Date: friday, Hour: 10, Duration: 1, Live: true},
	}}
	svc := newTestService(dir, hours, bookings)

	cal, err := svc.ResidenceAvailability(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []schedule.TimeSlot{
		{StartTime: 9, EndTime: 10},
		{StartTime: 10, EndTime: 11, Booked: true},
		{StartTime: 11, EndTime: 12},
	}, cal.Availability[friday])
}

func TestResidenceAvailabilityReopensCanceledSlot(t *testing.T) {
	dir, hours := singleAgentFixture(schedule.TimeSlot{StartTime: 9, EndTime: 12})
	bookings := &fakeBookings{local: []Booking{
		{ResidenceID: 10, Date: friday, Hour: 10, Duration: 1, Live: false},
	}}
	svc := newTestService(dir, hours, bookings)

	cal, err := svc.ResidenceAvailability(context.Background(), 5, 10)
	require.NoError(t, err)
	// The canceled range coincides with an advertised slot, so it is not duplicated.
	assert.Equal(t, []schedule.TimeSlot{
		{StartTime: 9, EndTime: 10},
		{StartTime: 10, EndTime: 11},
		{StartTime: 11, EndTime: 12},
	}, cal.Availability[friday])
}

func TestResidenceAvailabilityFlagsSubHourRemainders(t *testing.T) {
	dir, hours := singleAgentFixture(schedule.TimeSlot{StartTime: 9, EndTime: 12})
	bookings := &fakeBookings{external: []Booking{
		{ResidenceID: 99, Date: friday, Hour: 9.5, Duration: 1, Live: true},
	}}
	svc := newTestService(dir, hours, bookings)

	cal, err := svc.ResidenceAvailability(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []schedule.TimeSlot{
		{StartTime: 9, EndTime: 9.5, Booked: true},
		{StartTime: 10.5, EndTime: 11, Booked: true},
		{StartTime: 11, EndTime: 12},
	}, cal.Availability[friday], "sub-hour remainders stay visible but booked")
}

func TestCheckAvailability(t *testing.T) {
	dir, hours := singleAgentFixture(schedule.TimeSlot{StartTime: 9, EndTime: 12})
	bookings := &fakeBookings{local: []Booking{
		{ResidenceID: 10, Date: friday, Hour: 10, Duration: 1, Live: true},
	}}
	svc := newTestService(dir, hours, bookings)
	ctx := context.Background()

	ok, err := svc.CheckAvailability(ctx, 5, 10, "6-3-2026", 9, 1)
	require.NoError(t, err)
	assert.True(t, ok, "open slot, single-digit date form accepted")

	ok, err = svc.CheckAvailability(ctx, 5, 10, friday, 10, 1)
	require.NoError(t, err)
	assert.False(t, ok, "booked slot rejected")

	ok, err = svc.CheckAvailability(ctx, 5, 10, friday, 20, 1)
	require.NoError(t, err)
	assert.False(t, ok, "slot outside envelope rejected")
}

func TestAvailableAgents(t *testing.T) {
	dir := &fakeDirectory{
		residence: &directory.Residence{ID: 10, AgencyID: 5, Name: "Villa Aurora"},
		agents: []directory.Agent{
			{ID: 1, Name: "Alice", IsActive: true},
			{ID: 2, Name: "Bruno", IsActive: true},
		},
		cfg: directory.AgencyConfig{MinScheduleDays: 1, MaxScheduleDays: 1},
	}
	hours := &fakeHours{weeks: map[int64]map[schedule.Weekday][]schedule.TimeSlot{
		1: {6: {{StartTime: 9, EndTime: 17}}},
		2: {6: {{StartTime: 14, EndTime: 18}}},
	}}
	svc := newTestService(dir, hours, &fakeBookings{})

	agents, err := svc.AvailableAgents(context.Background(), 10, friday, 10, 1)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "Alice", agents[0].Name)

	agents, err = svc.AvailableAgents(context.Background(), 10, friday, 14, 1)
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	agents, err = svc.AvailableAgents(context.Background(), 10, friday, 17, 1)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "Bruno", agents[0].Name)
}

func TestDisplayWindow(t *testing.T) {
	dir := &fakeDirectory{
		residence: &directory.Residence{ID: 10, AgencyID: 5, Name: "Villa Aurora"},
		agents: []directory.Agent{
			{ID: 1, Name: "Alice", IsActive: true},
			{ID: 2, Name: "Bruno", IsActive: true},
		},
		cfg: directory.AgencyConfig{MinScheduleDays: 1, MaxScheduleDays: 1},
	}
	hours := &fakeHours{weeks: map[int64]map[schedule.Weekday][]schedule.TimeSlot{
		1: {6: {{StartTime: 9, EndTime: 17}}},
		2: {6: {{StartTime: 14, EndTime: 18}}},
	}}
	svc := newTestService(dir, hours, &fakeBookings{})

	minHour, maxHour, err := svc.DisplayWindow(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 9.0, minHour)
	assert.Equal(t, 18.0, maxHour)
}

func TestDisplayWindowOpenSentinel(t *testing.T) {
	dir := &fakeDirectory{
		residence: &directory.Residence{ID: 10, AgencyID: 5, Name: "Villa Aurora"},
		agents:    []directory.Agent{{ID: 9, Name: "Carla", IsActive: true}},
		cfg:       directory.AgencyConfig{MinScheduleDays: 1, MaxScheduleDays: 1},
	}
	hours := &fakeHours{weeks: map[int64]map[schedule.Weekday][]schedule.TimeSlot{}}
	svc := newTestService(dir, hours, &fakeBookings{})

	minHour, maxHour, err := svc.DisplayWindow(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, minHour)
	assert.Equal(t, 24.0, maxHour)
}
