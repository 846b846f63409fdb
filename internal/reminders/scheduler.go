package reminders

import (
	"context"
	"time"

	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/internal/token"
	"github.com/casavisita/platform/pkg/logging"
)

// ReminderStore is the persistence surface the scheduler needs.
type ReminderStore interface {
	Create(ctx context.Context, name, caseName string, config any, dueDate time.Time) error
}

// TokenSigner issues the confirm/cancel tokens embedded in the reminder mail.
type TokenSigner interface {
	Sign(claims token.Claims, expire bool) (string, error)
}

// AppointmentReminder is what the lifecycle hands over when a client
// confirmation becomes pending.
type AppointmentReminder struct {
	AppointmentID int64
	AgencyID      int64
	ResidenceID   int64
	AgentID       int64
	ClientName    string
	ClientEmail   string
	Date          string // dd-mm-yyyy
	Hour          float64
}

// Scheduler turns appointments into durable day-before reminders.
type Scheduler struct {
	store  ReminderStore
	signer TokenSigner
	logger *logging.Logger
}

func NewScheduler(store ReminderStore, signer TokenSigner, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{store: store, signer: signer, logger: logger.Component("reminders")}
}

// ScheduleClientReminder persists a DISPATCH_EMAIL reminder due one day
// before the visit. The client's confirm and cancel tokens are signed now so
// the dispatch path needs nothing but the payload.
func (s *Scheduler) ScheduleClientReminder(ctx context.Context, in AppointmentReminder) error {
	claims := token.Claims{
		AppointmentID: in.AppointmentID,
		AgencyID:      in.AgencyID,
		ResidenceID:   in.ResidenceID,
		AgentRef:      in.AgentID,
	}

	claims.Action = token.ClientConfirm
	confirmToken, err := s.signer.Sign(claims, true)
	if err != nil {
		return err
	}
	claims.Action = token.ClientCancel
	cancelToken, err := s.signer.Sign(claims, true)
	if err != nil {
		return err
	}

	visitDay, err := schedule.ParseDate(in.Date)
	if err != nil {
		return err
	}
	dueDate := visitDay.Add(time.Duration(in.Hour * float64(time.Hour))).AddDate(0, 0, -1)

	cfg := EmailDispatchConfig{
		AppointmentID: in.AppointmentID,
		AgencyID:      in.AgencyID,
		ResidenceID:   in.ResidenceID,
		AgentID:       in.AgentID,
		ClientName:    in.ClientName,
		ClientEmail:   in.ClientEmail,
		Date:          schedule.NormalizeDate(in.Date),
		Hour:          in.Hour,
		ConfirmToken:  confirmToken,
		CancelToken:   cancelToken,
	}
	if err := s.store.Create(ctx, "appointment-client-reminder", CaseDispatchEmail, cfg, dueDate); err != nil {
		return err
	}
	s.logger.Info("client reminder scheduled", "appointment_id", in.AppointmentID, "due_date", dueDate)
	return nil
}
