// Package availability computes day-by-day visit calendars for a residence
// by folding every serving agent's weekly hours into a single envelope, then
// carving out the commitments those agents already hold elsewhere and the
// bookings the residence itself carries.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/pkg/logging"
)

// Booking is the slice of an appointment the computer cares about: where and
// when it sits, and whether it still occupies the agent's time.
type Booking struct {
	ResidenceID int64
	Date        string // dd-mm-yyyy, zero-padded
	Hour        float64
	Duration    float64
	Live        bool // not canceled or rejected
}

// DirectorySource is the tenant lookup surface the computer needs.
type DirectorySource interface {
	ResidenceByID(ctx context.Context, id, agencyID int64) (*directory.Residence, error)
	ServingAgents(ctx context.Context, residenceID int64) ([]directory.Agent, error)
	Config(ctx context.Context, agencyID int64) (directory.AgencyConfig, error)
}

// WorkingHoursSource yields an agent's merged weekly template and the
// aggregate hour bounds across a set of agents.
type WorkingHoursSource interface {
	Availability(ctx context.Context, agentID int64) (map[schedule.Weekday][]schedule.TimeSlot, error)
	MinMaxHours(ctx context.Context, agentIDs []int64) (float64, float64, error)
}

// BookingSource yields appointment load. AgentBookings returns only live
// appointments the agents hold outside the excluded residence;
// ResidenceBookings returns every local appointment, dead ones included, so
// canceled slots can be re-advertised.
type BookingSource interface {
	AgentBookings(ctx context.Context, agentIDs []int64, excludeResidenceID int64) ([]Booking, error)
	ResidenceBookings(ctx context.Context, residenceID int64) ([]Booking, error)
}

// ResidenceCalendar is the public availability response for one residence.
type ResidenceCalendar struct {
	Name         string                         `json:"name"`
	Availability map[string][]schedule.TimeSlot `json:"availability"`
}

// Service is the availability computer.
type Service struct {
	directory DirectorySource
	hours     WorkingHoursSource
	bookings  BookingSource
	cache     *Cache
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(dir DirectorySource, hours WorkingHoursSource, bookings BookingSource, cache *Cache, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		directory: dir,
		hours:     hours,
		bookings:  bookings,
		cache:     cache,
		logger:    logger.Component("availability"),
		now:       time.Now,
	}
}

// ResidenceAvailability computes the rolling calendar for one residence over
// the agency's scheduling horizon.
func (s *Service) ResidenceAvailability(ctx context.Context, agencyID, residenceID int64) (*ResidenceCalendar, error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "availability.residence")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("agency.id", agencyID),
		attribute.Int64("residence.id", residenceID),
	)

	if cal, ok := s.cache.Get(ctx, agencyID, residenceID); ok {
		return cal, nil
	}

	residence, err := s.directory.ResidenceByID(ctx, residenceID, agencyID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.directory.Config(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	agents, err := s.directory.ServingAgents(ctx, residenceID)
	if err != nil {
		return nil, err
	}

	weekly := make(map[int64]map[schedule.Weekday][]schedule.TimeSlot, len(agents))
	agentIDs := make([]int64, 0, len(agents))
	for _, agent := range agents {
		week, err := s.hours.Availability(ctx, agent.ID)
		if err != nil {
			return nil, err
		}
		weekly[agent.ID] = week
		agentIDs = append(agentIDs, agent.ID)
	}

	external, err := s.externalByDate(ctx, agentIDs, residenceID)
	if err != nil {
		return nil, err
	}
	local, err := s.localByDate(ctx, residenceID)
	if err != nil {
		return nil, err
	}

	cal := &ResidenceCalendar{
		Name:         residence.Name,
		Availability: make(map[string][]schedule.TimeSlot),
	}
	today := s.now()
	for offset := cfg.MinScheduleDays; offset <= cfg.MaxScheduleDays; offset++ {
		date := today.AddDate(0, 0, offset)
		key := schedule.FormatDate(date)
		cal.Availability[key] = s.daySlots(date, key, agents, weekly, external, local)
	}

	s.cache.Set(ctx, agencyID, residenceID, cal)
	return cal, nil
}

// daySlots runs the per-date pipeline: envelope, hourly grid, external
// subtraction, local booking overlay, canceled-slot re-insertion.
func (s *Service) daySlots(
	date time.Time,
	key string,
	agents []directory.Agent,
	weekly map[int64]map[schedule.Weekday][]schedule.TimeSlot,
	external map[string][]Booking,
	local map[string][]Booking,
) []schedule.TimeSlot {
	weekday := schedule.WeekdayOf(date)

	var union []schedule.TimeSlot
	for _, agent := range agents {
		union = append(union, weekly[agent.ID][weekday]...)
	}
	if len(union) == 0 {
		return []schedule.TimeSlot{} // closed day
	}
	slots := schedule.HourlySplit(schedule.Merge(union))

	for _, booking := range external[key] {
		slots = schedule.Subtract(slots, booking.Hour, booking.Duration)
	}

	for _, booking := range local[key] {
		if !booking.Live {
			continue
		}
		end := booking.Hour + booking.Duration
		kept := slots[:0]
		for _, slot := range slots {
			if slot.StartTime >= booking.Hour && slot.EndTime <= end {
				continue
			}
			kept = append(kept, slot)
		}
		slots = append(kept, schedule.TimeSlot{StartTime: booking.Hour, EndTime: end, Booked: true})
	}

	// A canceled visit re-opens the range it used to hold, as long as the
	// grid does not already advertise it.
	for _, booking := range local[key] {
		if booking.Live {
			continue
		}
		end := booking.Hour + booking.Duration
		if !containsRange(slots, booking.Hour, end) {
			slots = append(slots, schedule.TimeSlot{StartTime: booking.Hour, EndTime: end})
		}
	}

	// Sub-hour remainders stay visible but are never offered.
	for i := range slots {
		if slots[i].EndTime-slots[i].StartTime < 1 {
			slots[i].Booked = true
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots
}

func containsRange(slots []schedule.TimeSlot, start, end float64) bool {
	for _, slot := range slots {
		if slot.StartTime == start && slot.EndTime == end {
			return true
		}
	}
	return false
}

func (s *Service) externalByDate(ctx context.Context, agentIDs []int64, residenceID int64) (map[string][]Booking, error) {
	if len(agentIDs) == 0 {
		return nil, nil
	}
	bookings, err := s.bookings.AgentBookings(ctx, agentIDs, residenceID)
	if err != nil {
		return nil, fmt.Errorf("availability: agent bookings: %w", err)
	}
	return indexByDate(bookings), nil
}

func (s *Service) localByDate(ctx context.Context, residenceID int64) (map[string][]Booking, error) {
	bookings, err := s.bookings.ResidenceBookings(ctx, residenceID)
	if err != nil {
		return nil, fmt.Errorf("availability: residence bookings: %w", err)
	}
	return indexByDate(bookings), nil
}

func indexByDate(bookings []Booking) map[string][]Booking {
	byDate := make(map[string][]Booking, len(bookings))
	for _, b := range bookings {
		if b.Duration == 0 {
			b.Duration = 1
		}
		key := schedule.NormalizeDate(b.Date)
		byDate[key] = append(byDate[key], b)
	}
	return byDate
}

// Invalidate drops the residence's cached calendar after a booking write.
func (s *Service) Invalidate(ctx context.Context, agencyID, residenceID int64) {
	s.cache.Invalidate(ctx, agencyID, residenceID)
}

// CheckAvailability reports whether the exact requested slot is advertised
// and unbooked in a freshly computed calendar. Creation re-validates through
// this rather than trusting the widget's view of the grid.
func (s *Service) CheckAvailability(ctx context.Context, agencyID, residenceID int64, date string, hour, duration float64) (bool, error) {
	if duration == 0 {
		duration = 1
	}
	s.cache.Invalidate(ctx, agencyID, residenceID)
	cal, err := s.ResidenceAvailability(ctx, agencyID, residenceID)
	if err != nil {
		return false, err
	}
	for _, slot := range cal.Availability[schedule.NormalizeDate(date)] {
		if slot.StartTime == hour && slot.EndTime == hour+duration && !slot.Booked {
			return true, nil
		}
	}
	return false, nil
}

// DisplayWindow returns the earliest start and latest end across the serving
// agents' working hours, the bounds the widget renders its grid between.
func (s *Service) DisplayWindow(ctx context.Context, residenceID int64) (float64, float64, error) {
	agents, err := s.directory.ServingAgents(ctx, residenceID)
	if err != nil {
		return 0, 0, err
	}
	agentIDs := make([]int64, 0, len(agents))
	for _, agent := range agents {
		agentIDs = append(agentIDs, agent.ID)
	}
	return s.hours.MinMaxHours(ctx, agentIDs)
}

// AvailableAgents filters the residence's serving agents down to those whose
// working hours for the date's weekday contain the requested range.
func (s *Service) AvailableAgents(ctx context.Context, residenceID int64, date string, hour, duration float64) ([]directory.Agent, error) {
	if duration == 0 {
		duration = 1
	}
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	weekday := schedule.WeekdayOf(day)

	agents, err := s.directory.ServingAgents(ctx, residenceID)
	if err != nil {
		return nil, err
	}

	var available []directory.Agent
	for _, agent := range agents {
		week, err := s.hours.Availability(ctx, agent.ID)
		if err != nil {
			return nil, err
		}
		for _, slot := range week[weekday] {
			if slot.StartTime <= hour && slot.EndTime >= hour+duration {
				available = append(available, agent)
				break
			}
		}
	}
	return available, nil
}
