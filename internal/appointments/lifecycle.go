package appointments

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/notify"
	"github.com/casavisita/platform/internal/observability/metrics"
	"github.com/casavisita/platform/internal/reminders"
	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/internal/token"
	"github.com/casavisita/platform/pkg/logging"
)

// Store is the persistence surface the lifecycle drives.
type Store interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	SetAgentConfirmed(ctx context.Context, id int64) error
	SetOwnerConfirmed(ctx context.Context, id int64) error
	SetSchedule(ctx context.Context, id int64, date string, hour float64) error
	AppendHistory(ctx context.Context, appointmentID int64, status Status) error
	History(ctx context.Context, appointmentID int64) ([]StatusHistory, error)
}

// Directory is the tenant lookup surface the lifecycle needs.
type Directory interface {
	AgencyByID(ctx context.Context, id int64) (*directory.Agency, error)
	AgentByID(ctx context.Context, id int64) (*directory.Agent, error)
	ClientByID(ctx context.Context, id int64) (*directory.Client, error)
	ResidenceByID(ctx context.Context, id, agencyID int64) (*directory.Residence, error)
	UpsertClient(ctx context.Context, name, email, phone string) (*directory.Client, error)
	CreateNotification(ctx context.Context, agencyID int64, message string) error
}

// AvailabilityChecker re-validates slots at write time and keeps the cached
// calendar honest after writes.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, agencyID, residenceID int64, date string, hour, duration float64) (bool, error)
	AvailableAgents(ctx context.Context, residenceID int64, date string, hour, duration float64) ([]directory.Agent, error)
	Invalidate(ctx context.Context, agencyID, residenceID int64)
}

// TokenService signs and verifies capability tokens.
type TokenService interface {
	Sign(claims token.Claims, expire bool) (string, error)
	Verify(tokenString string) (*token.Claims, error)
}

// ReminderScheduler queues the day-before client reminder.
type ReminderScheduler interface {
	ScheduleClientReminder(ctx context.Context, in reminders.AppointmentReminder) error
}

// Service is the appointment lifecycle state machine.
type Service struct {
	repo         Store
	directory    Directory
	availability AvailabilityChecker
	tokens       TokenService
	notifier     Notifier
	reminders    ReminderScheduler
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
	now          func() time.Time
	randIntn     func(n int) int
}

func NewService(
	repo Store,
	dir Directory,
	avail AvailabilityChecker,
	tokens TokenService,
	notifier Notifier,
	remindersSched ReminderScheduler,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:         repo,
		directory:    dir,
		availability: avail,
		tokens:       tokens,
		notifier:     notifier,
		reminders:    remindersSched,
		metrics:      m,
		logger:       logger.Component("lifecycle"),
		now:          time.Now,
		randIntn:     rand.Intn,
	}
}

// CreateInput is a widget booking request.
type CreateInput struct {
	Date     string
	Hour     float64
	Duration float64
	Notes    string

	Name  string
	Email string
	Phone string

	ResidenceID int64
	AgencyID    int64
}

// CreateResult pairs the new appointment with the agent tokens minted for it.
type CreateResult struct {
	Appointment *Appointment
	AgentTokens AgentTokens
}

// AgentTokens are the capability links mailed to the assigned agent.
type AgentTokens struct {
	Confirm    string
	Cancel     string
	Reschedule string
}

// Create books a viewing: re-validates the slot against a fresh calendar,
// picks an agent uniformly at random among those free, persists the PENDING
// appointment with its first history row, and mails out the agent's links.
// Notification failures are logged, never rolled back.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	ctx, span := otel.Tracer("appointments").Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("agency.id", in.AgencyID),
		attribute.Int64("residence.id", in.ResidenceID),
	)

	date := schedule.NormalizeDate(in.Date)
	if in.Duration == 0 {
		in.Duration = 1
	}

	residence, err := s.directory.ResidenceByID(ctx, in.ResidenceID, in.AgencyID)
	if err != nil {
		return nil, err
	}
	agency, err := s.directory.AgencyByID(ctx, in.AgencyID)
	if err != nil {
		return nil, err
	}

	available, err := s.availability.AvailableAgents(ctx, in.ResidenceID, date, in.Hour, in.Duration)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, ErrNoAvailableAgents
	}
	ok, err := s.availability.CheckAvailability(ctx, in.AgencyID, in.ResidenceID, date, in.Hour, in.Duration)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAvailable
	}

	client, err := s.directory.UpsertClient(ctx, in.Name, in.Email, in.Phone)
	if err != nil {
		return nil, err
	}
	agent := available[s.randIntn(len(available))]

	appt := &Appointment{
		Date:        date,
		Hour:        in.Hour,
		Duration:    in.Duration,
		Notes:       in.Notes,
		ClientID:    client.ID,
		AgentID:     agent.ID,
		ResidenceID: in.ResidenceID,
		Status:      StatusPending,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}
	if err := s.repo.AppendHistory(ctx, appt.ID, StatusPending); err != nil {
		return nil, err
	}
	s.availability.Invalidate(ctx, in.AgencyID, in.ResidenceID)

	claims := token.Claims{
		AppointmentID: appt.ID,
		AgencyID:      in.AgencyID,
		ResidenceID:   in.ResidenceID,
		AgentRef:      agent.ID,
	}
	tokens, err := s.mintAgentTokens(claims)
	if err != nil {
		return nil, err
	}

	visit := visitFields(appt, agency, &agent, residence, client)
	s.notifyBestEffort(ctx, "new-appointment", func() error {
		return s.notifier.SendNewAppointment(ctx, visit, tokens.Confirm, tokens.Cancel, tokens.Reschedule)
	})
	s.notifyBestEffort(ctx, "received-appointment", func() error {
		return s.notifier.SendReceivedAppointment(ctx, visit)
	})
	if err := s.directory.CreateNotification(ctx, in.AgencyID,
		client.Name+" requested a viewing of "+residence.Name+" on "+date); err != nil {
		s.logger.Warn("agency notification failed", "appointment_id", appt.ID, "error", err)
	}

	s.metrics.ObserveCreated()
	s.logger.Info("appointment created",
		"appointment_id", appt.ID, "residence_id", in.ResidenceID, "agent_id", agent.ID, "date", date, "hour", in.Hour)
	return &CreateResult{Appointment: appt, AgentTokens: tokens}, nil
}

func (s *Service) mintAgentTokens(claims token.Claims) (AgentTokens, error) {
	var tokens AgentTokens
	var err error

	claims.Action = token.AgentConfirm
	if tokens.Confirm, err = s.tokens.Sign(claims, true); err != nil {
		return tokens, err
	}
	claims.Action = token.AgentCancel
	if tokens.Cancel, err = s.tokens.Sign(claims, true); err != nil {
		return tokens, err
	}
	claims.Action = token.AgentReschedule
	if tokens.Reschedule, err = s.tokens.Sign(claims, false); err != nil {
		return tokens, err
	}
	return tokens, nil
}

// UpdateStatus consumes a capability token and runs the transition it names.
// The current status is the guard; token validity alone never authorizes a
// transition twice.
func (s *Service) UpdateStatus(ctx context.Context, tokenString string) (*Appointment, error) {
	ctx, span := otel.Tracer("appointments").Start(ctx, "appointments.update_status")
	defer span.End()

	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("token.action", string(claims.Action)))

	appt, err := s.repo.GetByID(ctx, claims.AppointmentID)
	if err != nil {
		return nil, err
	}

	switch claims.Action {
	case token.AgentConfirm:
		err = s.agentConfirm(ctx, appt, claims)
	case token.AgentCancel:
		err = s.guardedTransition(ctx, appt, StatusPending, StatusCanceled, ErrAlreadyCancelled,
			func() { s.notifyClientRejected(ctx, appt, claims.AgencyID) })
	case token.AgentReschedule:
		err = s.guardedTransition(ctx, appt, StatusPending, StatusReprogrammed, ErrAlreadyReprogrammed,
			func() { s.notifyClientReschedule(ctx, appt, claims) })
	case token.OwnerConfirm:
		err = s.ownerConfirm(ctx, appt, claims)
	case token.OwnerCancel:
		err = s.guardedTransition(ctx, appt, StatusPendingOwner, StatusCanceled, ErrAlreadyCancelled,
			func() { s.notifyCanceledByOwner(ctx, appt, claims.AgencyID) })
	case token.ClientConfirm:
		err = s.guardedTransition(ctx, appt, StatusPendingClient, StatusAccepted, ErrAlreadyAccepted, nil)
	case token.ClientCancel:
		err = s.guardedTransition(ctx, appt, StatusPendingClient, StatusRejected, ErrAlreadyRejected,
			func() { s.notifyClientCancellation(ctx, appt, claims.AgencyID) })
	case token.ClientReschedule:
		err = s.clientAcceptReschedule(ctx, appt, claims)
	case token.ClientCancelReschedule:
		err = s.guardedTransition(ctx, appt, StatusReprogrammed, StatusRejected, ErrAlreadyCancelReprogrammed,
			func() { s.notifyClientRescheduleCancellation(ctx, appt, claims.AgencyID) })
	default:
		err = ErrInvalidAction
	}
	if err != nil {
		s.metrics.ObserveTransition(string(claims.Action), "conflict")
		return nil, err
	}

	s.availability.Invalidate(ctx, claims.AgencyID, appt.ResidenceID)
	s.metrics.ObserveTransition(string(claims.Action), "ok")
	s.logger.Info("appointment transitioned",
		"appointment_id", appt.ID, "action", claims.Action, "status", appt.Status)
	return appt, nil
}

// guardedTransition applies the table's common shape: check the guard,
// append history, flip the status, then fire the edge's notification.
func (s *Service) guardedTransition(ctx context.Context, appt *Appointment, guard, next Status, conflict error, sideEffect func()) error {
	if appt.Status != guard {
		return conflict
	}
	if err := s.transition(ctx, appt, next); err != nil {
		return err
	}
	if sideEffect != nil {
		sideEffect()
	}
	return nil
}

// transition appends the history row before flipping the status so the audit
// trail never misses a step.
func (s *Service) transition(ctx context.Context, appt *Appointment, next Status) error {
	if err := s.repo.AppendHistory(ctx, appt.ID, next); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, appt.ID, next); err != nil {
		return err
	}
	appt.Status = next
	return nil
}

// agentConfirm moves PENDING forward. When the residence's owner is the
// agency itself the owner leg is skipped: the appointment goes straight to
// PENDING_CLIENT and the client reminder is queued now.
func (s *Service) agentConfirm(ctx context.Context, appt *Appointment, claims *token.Claims) error {
	if appt.Status != StatusPending {
		return ErrAlreadyConfirmed
	}

	residence, err := s.directory.ResidenceByID(ctx, appt.ResidenceID, claims.AgencyID)
	if err != nil {
		return err
	}
	agency, err := s.directory.AgencyByID(ctx, claims.AgencyID)
	if err != nil {
		return err
	}

	if err := s.repo.SetAgentConfirmed(ctx, appt.ID); err != nil {
		return err
	}
	appt.AgentConfirmation = true

	if residence.OwnerEmail == agency.Email {
		if err := s.transition(ctx, appt, StatusPendingClient); err != nil {
			return err
		}
		s.scheduleClientReminder(ctx, appt, claims.AgencyID)
		s.notifyAcceptedByOwner(ctx, appt, claims)
		return nil
	}

	if err := s.transition(ctx, appt, StatusPendingOwner); err != nil {
		return err
	}
	s.notifyOwnerConfirmationRequest(ctx, appt, claims)
	return nil
}

// clientAcceptReschedule takes the client's acceptance of a proposed new time
// back into the owner leg. Acceptance doubles as the agent-side confirmation,
// since the agent authored the proposal.
func (s *Service) clientAcceptReschedule(ctx context.Context, appt *Appointment, claims *token.Claims) error {
	if appt.Status != StatusReprogrammed {
		return ErrAlreadyReprogrammed
	}
	if err := s.repo.SetAgentConfirmed(ctx, appt.ID); err != nil {
		return err
	}
	appt.AgentConfirmation = true

	if err := s.transition(ctx, appt, StatusPendingOwner); err != nil {
		return err
	}
	s.notifyOwnerConfirmationRequest(ctx, appt, claims)
	return nil
}

func (s *Service) ownerConfirm(ctx context.Context, appt *Appointment, claims *token.Claims) error {
	if appt.Status != StatusPendingOwner {
		return ErrAlreadyConfirmed
	}
	if err := s.repo.SetOwnerConfirmed(ctx, appt.ID); err != nil {
		return err
	}
	appt.OwnerConfirmation = true

	if err := s.transition(ctx, appt, StatusPendingClient); err != nil {
		return err
	}
	s.scheduleClientReminder(ctx, appt, claims.AgencyID)
	s.notifyAcceptedByOwner(ctx, appt, claims)
	return nil
}

// Reschedule rewrites the appointment's date and hour, then re-enters the
// state machine with a freshly signed token for the same action, so a
// reschedule is never a bare field update.
func (s *Service) Reschedule(ctx context.Context, tokenString, day string, hour float64) (*Appointment, error) {
	ctx, span := otel.Tracer("appointments").Start(ctx, "appointments.reschedule")
	defer span.End()

	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Action != token.AgentReschedule && claims.Action != token.ClientReschedule {
		return nil, ErrInvalidAction
	}

	appt, err := s.repo.GetByID(ctx, claims.AppointmentID)
	if err != nil {
		return nil, err
	}

	date := schedule.NormalizeDate(day)
	if err := s.repo.SetSchedule(ctx, appt.ID, date, hour); err != nil {
		return nil, err
	}

	fresh, err := s.tokens.Sign(token.Claims{
		AppointmentID: claims.AppointmentID,
		Action:        claims.Action,
		AgencyID:      claims.AgencyID,
		ResidenceID:   claims.ResidenceID,
		AgentRef:      claims.AgentRef,
	}, false)
	if err != nil {
		return nil, err
	}
	return s.UpdateStatus(ctx, fresh)
}

// DetailsFromToken resolves the public read model behind a token link.
func (s *Service) DetailsFromToken(ctx context.Context, tokenString string) (*Details, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	appt, err := s.repo.GetByID(ctx, claims.AppointmentID)
	if err != nil {
		return nil, err
	}
	residence, err := s.directory.ResidenceByID(ctx, appt.ResidenceID, claims.AgencyID)
	if err != nil {
		return nil, err
	}
	client, err := s.directory.ClientByID(ctx, appt.ClientID)
	if err != nil {
		return nil, err
	}
	return &Details{
		Status:        appt.Status,
		Date:          appt.Date,
		Hour:          notify.FormatHour(appt.Hour),
		ResidenceName: residence.Name,
		ClientName:    client.Name,
	}, nil
}

// History returns the append-only status trail for one appointment.
func (s *Service) History(ctx context.Context, appointmentID int64) ([]StatusHistory, error) {
	if _, err := s.repo.GetByID(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, appointmentID)
}

func (s *Service) scheduleClientReminder(ctx context.Context, appt *Appointment, agencyID int64) {
	client, err := s.directory.ClientByID(ctx, appt.ClientID)
	if err != nil {
		s.logger.Error("reminder skipped, client lookup failed", "appointment_id", appt.ID, "error", err)
		return
	}
	err = s.reminders.ScheduleClientReminder(ctx, reminders.AppointmentReminder{
		AppointmentID: appt.ID,
		AgencyID:      agencyID,
		ResidenceID:   appt.ResidenceID,
		AgentID:       appt.AgentID,
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		Date:          appt.Date,
		Hour:          appt.Hour,
	})
	if err != nil {
		s.logger.Error("reminder scheduling failed", "appointment_id", appt.ID, "error", err)
	}
}
