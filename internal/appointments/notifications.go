package appointments

import (
	"context"

	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/notify"
	"github.com/casavisita/platform/internal/token"
)

// Notifier is the slice of the mailer the lifecycle and sweeper use.
type Notifier interface {
	SendNewAppointment(ctx context.Context, v notify.Visit, confirmToken, cancelToken, rescheduleToken string) error
	SendReceivedAppointment(ctx context.Context, v notify.Visit) error
	SendOwnerConfirmationRequest(ctx context.Context, v notify.Visit, confirmToken, cancelToken string) error
	SendAcceptedByOwner(ctx context.Context, v notify.Visit, confirmToken, cancelToken string) error
	SendClientRejected(ctx context.Context, v notify.Visit) error
	SendClientReschedule(ctx context.Context, v notify.Visit, rescheduleToken, cancelToken string) error
	SendCanceledByOwner(ctx context.Context, v notify.Visit) error
	SendClientCancellation(ctx context.Context, v notify.Visit) error
	SendClientRescheduleCancellation(ctx context.Context, v notify.Visit) error
}

// notifyBestEffort runs one send; a failure is logged and counted, never
// surfaced, so mail trouble cannot roll back a transition that committed.
func (s *Service) notifyBestEffort(ctx context.Context, template string, send func() error) {
	if err := send(); err != nil {
		s.logger.Error("notification failed", "template", template, "error", err)
		s.metrics.ObserveNotifyFailure(template)
	}
}

func visitFields(appt *Appointment, agency *directory.Agency, agent *directory.Agent, residence *directory.Residence, client *directory.Client) notify.Visit {
	return notify.Visit{
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		AgentName:     agent.Name,
		AgentEmail:    agent.Email,
		OwnerName:     residence.OwnerName,
		OwnerEmail:    residence.OwnerEmail,
		AgencyName:    agency.Name,
		AgencyEmail:   agency.Email,
		ResidenceName: residence.Name,
		Date:          appt.Date,
		Hour:          appt.Hour,
		Notes:         appt.Notes,
	}
}

// loadVisit re-resolves every party of an appointment.
func (s *Service) loadVisit(ctx context.Context, appt *Appointment, agencyID int64) (notify.Visit, error) {
	agency, err := s.directory.AgencyByID(ctx, agencyID)
	if err != nil {
		return notify.Visit{}, err
	}
	agent, err := s.directory.AgentByID(ctx, appt.AgentID)
	if err != nil {
		return notify.Visit{}, err
	}
	residence, err := s.directory.ResidenceByID(ctx, appt.ResidenceID, agencyID)
	if err != nil {
		return notify.Visit{}, err
	}
	client, err := s.directory.ClientByID(ctx, appt.ClientID)
	if err != nil {
		return notify.Visit{}, err
	}
	return visitFields(appt, agency, agent, residence, client), nil
}

func (s *Service) notifyClientRejected(ctx context.Context, appt *Appointment, agencyID int64) {
	s.notifyBestEffort(ctx, "client-rejected", func() error {
		visit, err := s.loadVisit(ctx, appt, agencyID)
		if err != nil {
			return err
		}
		return s.notifier.SendClientRejected(ctx, visit)
	})
}

func (s *Service) notifyCanceledByOwner(ctx context.Context, appt *Appointment, agencyID int64) {
	s.notifyBestEffort(ctx, "canceled-by-owner", func() error {
		visit, err := s.loadVisit(ctx, appt, agencyID)
		if err != nil {
			return err
		}
		return s.notifier.SendCanceledByOwner(ctx, visit)
	})
}

func (s *Service) notifyClientCancellation(ctx context.Context, appt *Appointment, agencyID int64) {
	s.notifyBestEffort(ctx, "client-cancellation", func() error {
		visit, err := s.loadVisit(ctx, appt, agencyID)
		if err != nil {
			return err
		}
		return s.notifier.SendClientCancellation(ctx, visit)
	})
}

func (s *Service) notifyClientRescheduleCancellation(ctx context.Context, appt *Appointment, agencyID int64) {
	s.notifyBestEffort(ctx, "client-reschedule-cancellation", func() error {
		visit, err := s.loadVisit(ctx, appt, agencyID)
		if err != nil {
			return err
		}
		return s.notifier.SendClientRescheduleCancellation(ctx, visit)
	})
}

func (s *Service) notifyOwnerConfirmationRequest(ctx context.Context, appt *Appointment, claims *token.Claims) {
	s.notifyBestEffort(ctx, "owner-confirmation-request", func() error {
		visit, err := s.loadVisit(ctx, appt, claims.AgencyID)
		if err != nil {
			return err
		}
		confirm, cancel, err := s.mintPair(*claims, token.OwnerConfirm, token.OwnerCancel)
		if err != nil {
			return err
		}
		return s.notifier.SendOwnerConfirmationRequest(ctx, visit, confirm, cancel)
	})
}

func (s *Service) notifyAcceptedByOwner(ctx context.Context, appt *Appointment, claims *token.Claims) {
	s.notifyBestEffort(ctx, "accepted-by-owner", func() error {
		visit, err := s.loadVisit(ctx, appt, claims.AgencyID)
		if err != nil {
			return err
		}
		confirm, cancel, err := s.mintPair(*claims, token.ClientConfirm, token.ClientCancel)
		if err != nil {
			return err
		}
		return s.notifier.SendAcceptedByOwner(ctx, visit, confirm, cancel)
	})
}

func (s *Service) notifyClientReschedule(ctx context.Context, appt *Appointment, claims *token.Claims) {
	s.notifyBestEffort(ctx, "client-reschedule", func() error {
		visit, err := s.loadVisit(ctx, appt, claims.AgencyID)
		if err != nil {
			return err
		}
		// Reschedule links stay valid until the client answers.
		reschedule, err := s.signAction(*claims, token.ClientReschedule, false)
		if err != nil {
			return err
		}
		cancel, err := s.signAction(*claims, token.ClientCancelReschedule, false)
		if err != nil {
			return err
		}
		return s.notifier.SendClientReschedule(ctx, visit, reschedule, cancel)
	})
}

func (s *Service) signAction(claims token.Claims, action token.Action, expire bool) (string, error) {
	return s.tokens.Sign(token.Claims{
		AppointmentID: claims.AppointmentID,
		Action:        action,
		AgencyID:      claims.AgencyID,
		ResidenceID:   claims.ResidenceID,
		AgentRef:      claims.AgentRef,
	}, expire)
}

func (s *Service) mintPair(claims token.Claims, confirmAction, cancelAction token.Action) (string, string, error) {
	confirm, err := s.signAction(claims, confirmAction, true)
	if err != nil {
		return "", "", err
	}
	cancel, err := s.signAction(claims, cancelAction, true)
	if err != nil {
		return "", "", err
	}
	return confirm, cancel, nil
}
