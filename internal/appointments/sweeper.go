package appointments

import (
	"context"
	"strings"
	"time"

	"github.com/casavisita/platform/internal/observability/metrics"
	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/pkg/logging"
)

// SweepStore is the repository surface the sweeper needs.
type SweepStore interface {
	ListForSweep(ctx context.Context) ([]SweepCandidate, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	AppendHistory(ctx context.Context, appointmentID int64, status Status) error
}

// Sweeper auto-cancels appointments whose visit time passed while they were
// still working through the confirmation protocol.
type Sweeper struct {
	repo      SweepStore
	lifecycle *Service
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewSweeper(repo SweepStore, lifecycle *Service, m *metrics.BookingMetrics, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		repo:      repo,
		lifecycle: lifecycle,
		metrics:   m,
		logger:    logger.Component("sweeper"),
		now:       time.Now,
	}
}

// ProcessDue cancels every overdue candidate. Only appointments that were
// still PENDING notify the client; later stages cancel silently, since those
// parties already held links that went stale on their own.
func (s *Sweeper) ProcessDue(ctx context.Context) (int, error) {
	candidates, err := s.repo.ListForSweep(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	swept := 0
	for _, c := range candidates {
		when, err := parseAppointmentTime(c.Date, c.Hour)
		if err != nil {
			s.logger.Warn("unparseable appointment date, skipping", "appointment_id", c.ID, "date", c.Date)
			continue
		}
		if !when.Before(now) {
			continue
		}

		prior := c.Status
		if err := s.repo.AppendHistory(ctx, c.ID, StatusCanceled); err != nil {
			s.logger.Error("sweep history append failed", "appointment_id", c.ID, "error", err)
			continue
		}
		if err := s.repo.SetStatus(ctx, c.ID, StatusCanceled); err != nil {
			s.logger.Error("sweep cancel failed", "appointment_id", c.ID, "error", err)
			continue
		}
		swept++
		s.lifecycle.availability.Invalidate(ctx, c.AgencyID, c.ResidenceID)
		s.logger.Info("stale appointment canceled", "appointment_id", c.ID, "prior_status", prior)

		if prior == StatusPending {
			appt := c.Appointment
			appt.Status = StatusCanceled
			s.lifecycle.notifyClientRejected(ctx, &appt, c.AgencyID)
		}
	}

	s.metrics.ObserveSweep(swept)
	return swept, nil
}

// parseAppointmentTime handles the date forms the store has accumulated:
// ISO timestamps, "dd-mm-yyyy HH:mm", and a bare "dd-mm-yyyy" combined with
// the fractional hour column.
func parseAppointmentTime(date string, hour float64) (time.Time, error) {
	if strings.Contains(date, "T") {
		if t, err := time.Parse(time.RFC3339, date); err == nil {
			return t, nil
		}
		return time.Parse("2006-01-02T15:04:05", date)
	}
	if fields := strings.Fields(date); len(fields) == 2 {
		return time.Parse("02-01-2006 15:04", schedule.NormalizeDate(fields[0])+" "+fields[1])
	}
	day, err := schedule.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(hour * float64(time.Hour))), nil
}
